package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const reportFile = "report.txt"
const hashFile = ".hash"

// isHashDir returns true if name is an 8-char hex string (matches shortHash format).
func isHashDir(name string) bool {
	if len(name) != 8 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// reportInfo hashes everything that determines a report: the demo name,
// the budget, and the input IR itself.
// Returns short hash (8 chars for directory name) and full hash (for collision check).
func reportInfo(d demo, maxCarried int32) (shortHash, fullHash string) {
	h := sha256.New()
	h.Write([]byte(d.name))
	fmt.Fprintf(h, "|k=%d|", maxCarried)
	h.Write([]byte(d.build().String()))
	fullHash = hex.EncodeToString(h.Sum(nil))
	return fullHash[:8], fullHash
}

// cleanupOldReports removes old report hash directories.
// Only deletes directories older than minAge AND keeps at least 'keep' most recent.
// This prevents deleting reports that may still be in use by concurrent processes.
func cleanupOldReports(cacheDir string, keep int, minAge int64) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil || len(entries) <= keep {
		return
	}

	type dirInfo struct {
		name  string
		mtime int64
	}
	var dirs []dirInfo
	for _, e := range entries {
		if e.IsDir() && isHashDir(e.Name()) {
			if info, err := e.Info(); err == nil {
				dirs = append(dirs, dirInfo{e.Name(), info.ModTime().Unix()})
			}
		}
	}

	if len(dirs) <= keep {
		return
	}

	cutoff := time.Now().Unix() - minAge
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime < dirs[j].mtime })
	for i := 0; i < len(dirs)-keep; i++ {
		if dirs[i].mtime < cutoff {
			path := filepath.Join(cacheDir, dirs[i].name)
			if err := os.RemoveAll(path); err != nil {
				fmt.Printf("warning: failed to remove old report %s: %v\n", path, err)
			}
		}
	}
}

// cachedReport returns the report for one demo, reusing a cached copy
// when the input hash matches. The cache directory is file-locked so
// concurrent invocations (two test binaries in one CI job) see either a
// complete report or build their own.
func cachedReport(cacheDir string, d demo, maxCarried int32, force bool) (report string, cached bool, err error) {
	lock := flock.New(filepath.Join(cacheDir, ".lock"))
	if err := lock.Lock(); err != nil {
		return "", false, fmt.Errorf("acquire report lock: %w", err)
	}
	defer lock.Unlock()

	shortHash, fullHash := reportInfo(d, maxCarried)
	dir := filepath.Join(cacheDir, shortHash)

	if !force {
		// Verify the full hash to detect collisions; the hash file also
		// acts as the completion marker.
		if storedHash, err := os.ReadFile(filepath.Join(dir, hashFile)); err == nil && string(storedHash) == fullHash {
			if data, err := os.ReadFile(filepath.Join(dir, reportFile)); err == nil {
				return string(data), true, nil
			}
		}
	}

	cleanupOldReports(cacheDir, 20, 7*24*60*60)

	report = renderReport(d.name, d.build(), maxCarried)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reportFile), []byte(report), 0644); err != nil {
		return "", false, fmt.Errorf("write report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, hashFile), []byte(fullHash), 0644); err != nil {
		return "", false, fmt.Errorf("write hash file: %w", err)
	}
	return report, false, nil
}
