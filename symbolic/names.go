package symbolic

import (
	"fmt"
	"sync/atomic"
)

var freshCounter int64

// UniqueName returns a process-wide fresh identifier. The counter is
// atomic: the pass itself is single-threaded, but a driver running
// several programs in one process should not collide.
func UniqueName(prefix string) string {
	n := atomic.AddInt64(&freshCounter, 1)
	return fmt.Sprintf("%s$%d", prefix, n)
}
