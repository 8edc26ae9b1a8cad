package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/loopcarry"
)

// defaultCarryCache returns $CARRYCACHE when it is set. Otherwise it
// returns the per-OS default (windows, mac, linux); a default derived
// from LocalAppData or XDG_CACHE_HOME is returned as is, any other
// default is also exported as CARRYCACHE.
func defaultCarryCache() string {
	if env := os.Getenv("CARRYCACHE"); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	var cache string
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			cache = filepath.Join(localAppData, "loopcarry")
			return cache
		}
		cache = filepath.Join(homeDir, "AppData", "Local", "loopcarry")

	case "darwin":
		cache = filepath.Join(homeDir, "Library", "Caches", "loopcarry")

	default: // Linux and others
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			cache = filepath.Join(xdg, "loopcarry")
			return cache
		}
		cache = filepath.Join(homeDir, ".cache", "loopcarry")
	}

	os.Setenv("CARRYCACHE", cache)
	return cache
}

type demo struct {
	name  string
	build func() ir.Stmt
}

func intVar(name string) *ir.Variable {
	return &ir.Variable{Name: name, Typ: ir.Int32}
}

func imm(v int64) *ir.IntImm {
	return &ir.IntImm{Value: v, Typ: ir.Int32}
}

func inputLoad(buf string, idx ir.Expr) *ir.Load {
	return &ir.Load{Buffer: buf, Index: idx, Class: ir.BufferParam, ElemType: ir.Int32}
}

// stencil builds out[i] = in[i] + in[i+1] + ... + in[i+taps-1] over a
// loop of the given kind.
func stencil(buf, out string, taps int, ft ir.ForType) *ir.For {
	i := intVar("i")
	val := ir.Expr(inputLoad(buf, i))
	for k := 1; k < taps; k++ {
		val = &ir.Add{A: val, B: inputLoad(buf, &ir.Add{A: i, B: imm(int64(k))})}
	}
	body := &ir.Store{Buffer: out, Index: i, Value: val}
	return &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ft, Body: body}
}

func demos() []demo {
	return []demo{
		{"stencil3", func() ir.Stmt {
			return stencil("in", "out", 3, ir.Serial)
		}},
		{"stencil3_parallel", func() ir.Stmt {
			return stencil("in", "out", 3, ir.Parallel)
		}},
		{"nonlinear", func() ir.Stmt {
			i := intVar("i")
			body := &ir.Store{Buffer: "out", Index: i, Value: inputLoad("in", &ir.Mul{A: i, B: i})}
			return &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
		}},
		{"two_stencils", func() ir.Stmt {
			a := stencil("a", "out", 6, ir.Serial)
			b := stencil("b", "out2", 5, ir.Serial)
			return &ir.For{
				Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial,
				Body: &ir.Block{Stmts: []ir.Stmt{a.Body, b.Body}},
			}
		}},
		{"consumed_intermediate", func() ir.Stmt {
			i := intVar("i")
			mk := func(off int64) *ir.Load {
				idx := ir.Expr(i)
				if off != 0 {
					idx = &ir.Add{A: i, B: imm(off)}
				}
				return &ir.Load{Buffer: "blurx", Index: idx, Class: ir.BufferIntermediate, ElemType: ir.Int32}
			}
			body := &ir.Store{Buffer: "out", Index: i, Value: &ir.Add{A: &ir.Add{A: mk(0), B: mk(1)}, B: mk(2)}}
			loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
			return &ir.ProducerConsumer{Name: "blurx", IsProducer: false, Body: loop}
		}},
	}
}

// renderReport runs the pass over one demo program and formats the
// before IR followed by the after IR.
func renderReport(name string, before ir.Stmt, maxCarried int32) string {
	after := loopcarry.LoopCarry(before, loopcarry.Config{MaxCarriedValues: maxCarried})
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s (max_carried_values=%d)\n", name, maxCarried)
	sb.WriteString("-- before:\n")
	sb.WriteString(before.String())
	sb.WriteString("\n-- after:\n")
	sb.WriteString(after.String())
	sb.WriteString("\n")
	return sb.String()
}

func main() {
	maxCarried := flag.Int("k", 8, "maximum carried values per loop")
	noCache := flag.Bool("nocache", false, "recompute reports even when cached")
	showVersion := flag.Bool("version", false, "print version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cacheDir := defaultCarryCache()
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		fmt.Printf("Error creating CARRYCACHE directory: %v\n", err)
		os.Exit(1)
	}

	selected := demos()
	if args := flag.Args(); len(args) > 0 {
		byName := map[string]demo{}
		for _, d := range selected {
			byName[d.name] = d
		}
		selected = nil
		for _, a := range args {
			d, ok := byName[a]
			if !ok {
				fmt.Printf("Unknown demo %q\n", a)
				os.Exit(1)
			}
			selected = append(selected, d)
		}
	}

	for _, d := range selected {
		report, cached, err := cachedReport(cacheDir, d, int32(*maxCarried), *noCache)
		if err != nil {
			fmt.Printf("⚠️ Report failed for %s: %v\n", d.name, err)
			continue
		}
		if cached {
			fmt.Printf("Using cached report for %s\n", d.name)
		}
		fmt.Print(report)
	}
}
