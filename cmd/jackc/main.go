// Command jackc compiles Jack source files into Hack VM assembly. It is
// the external driver surface of spec.md §6: it accepts a directory or a
// single *.jack file, invokes the pre-processor and compiler over each
// input, and writes a sibling *.vm file per unit. This directory-walking
// and raw file I/O sit outside THE CORE the rest of this module
// implements.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/jcorbin/jackc/internal/driver"
	"github.com/jcorbin/jackc/internal/logio"
	"github.com/jcorbin/jackc/internal/panicerr"
)

func main() {
	var (
		emitXML bool
		workers int
		verbose bool
	)
	flag.BoolVar(&emitXML, "xml", false, "also emit a diagnostic .xml parse tree per unit")
	flag.IntVar(&workers, "workers", 0, "bound concurrent compilation units (0 = unbounded)")
	flag.BoolVar(&verbose, "verbose", false, "log one line per compiled unit")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer func() { os.Exit(log.ExitCode()) }()

	args := flag.Args()
	if len(args) != 1 {
		log.Errorf("usage: jackc [-xml] [-workers N] [-verbose] <dir-or-file.jack>")
		return
	}

	opts := driver.Options{EmitXML: emitXML, Workers: workers}
	if verbose {
		lw := &logio.Writer{Logf: log.Leveledf("COMPILE")}
		defer lw.Close()
		opts.Trace = lw
	}
	target := args[0]

	info, err := os.Stat(target)
	if err != nil {
		log.ErrorIf(err)
		return
	}

	ctx := context.Background()
	if info.IsDir() {
		reportCompileErr(&log, target, driver.CompileDir(ctx, target, opts))
		return
	}

	if filepath.Ext(target) != ".jack" {
		log.Errorf("%s: not a .jack file", target)
		return
	}
	reportCompileErr(&log, target, driver.CompileFile(target, opts))
}

// reportCompileErr logs err, if any, distinguishing a panic or goroutine
// exit recovered by internal/panicerr (spec.md §7d) from any other failure;
// an internal error that the compiler returns rather than panics with is
// logged through the ordinary branch, like a lex/syntax/semantic failure
// (§7a–c). This mirrors the way the teacher's
// haltError/errors.As reporting tells apart a recovered panic from a plain
// error.
func reportCompileErr(log *logio.Logger, target string, err error) {
	switch {
	case err == nil:
		return
	case panicerr.IsPanic(err):
		log.Errorf("%s: internal error: %+v", target, err)
	case panicerr.IsExit(err):
		log.Errorf("%s: internal error: %v", target, err)
	default:
		log.ErrorIf(err)
	}
}
