// Package driver implements the directory-walking driver surface
// described in spec.md §6: it is deliberately outside THE CORE (lexer,
// symbol table, VM emitter, compilation engine), responsible only for
// locating *.jack files, running the pre-processor and compiler over
// each one, and writing the resulting *.vm file. Concurrency here is the
// one place this repository departs from the core's single-threaded
// model (spec.md §5): independent compilation units have no shared state,
// so multiple files in one directory are compiled concurrently through
// an errgroup.Group, the way the teacher's scripts/gen_vm_expects.go
// drives concurrent subprocess work.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/jackc/internal/compiler"
	"github.com/jcorbin/jackc/internal/flushio"
	"github.com/jcorbin/jackc/internal/preprocess"
)

// Options configures a directory compile.
type Options struct {
	// EmitXML additionally writes a sibling .xml diagnostic parse tree
	// for each compiled unit (spec.md §6).
	EmitXML bool

	// Workers bounds the number of units compiled concurrently. Zero or
	// negative means unbounded (errgroup.SetLimit(-1) semantics: no cap).
	Workers int

	// Trace, if set, receives one line per successfully compiled unit.
	// cmd/jackc's -verbose flag points this at a logio.Writer so unit
	// completions flow through the same leveled logger as error
	// reporting. Trace must be safe for concurrent use: CompileDir calls
	// it from multiple goroutines.
	Trace io.Writer
}

// UnitError wraps a single compilation unit's failure with the path that
// produced it, so a multi-file run can report which file aborted without
// losing the others' results (spec.md §7's "abort the unit on first
// error" is per-unit, not per-run).
type UnitError struct {
	Path string
	Err  error
}

func (e *UnitError) Error() string  { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *UnitError) Unwrap() error  { return e.Err }

// CompileDir finds every *.jack file directly inside dir (the driver does
// not recurse into subdirectories, matching the reference Jack compiler's
// directory-at-a-time contract) and writes a sibling *.vm file for each,
// running up to opts.Workers compilations concurrently.
func CompileDir(ctx context.Context, dir string, opts Options) error {
	paths, err := jackFiles(dir)
	if err != nil {
		return err
	}

	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := CompileFile(path, opts); err != nil {
				return &UnitError{Path: path, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// CompileFile preprocesses, compiles, and writes the *.vm (and optional
// *.xml) output for a single Jack source file.
func CompileFile(path string, opts Options) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	clean, err := preprocess.Strip(src, path)
	if err != nil {
		return err
	}

	vmPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".vm"
	vmFile, err := os.Create(vmPath)
	if err != nil {
		return err
	}
	defer vmFile.Close()

	// Both sinks are combined into one flushio.WriteFlusher so a single
	// Flush call at the end guarantees the .vm output and the optional
	// .xml output both land on disk, the way the teacher combines
	// multiple VM output destinations in its own dump/trace plumbing.
	vmSink := flushio.NewWriteFlusher(vmFile)
	sinks := vmSink

	var compilerOpts []compiler.Option
	var xmlFile *os.File
	if opts.EmitXML {
		xmlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".xml"
		xmlFile, err = os.Create(xmlPath)
		if err != nil {
			return err
		}
		defer xmlFile.Close()
		xmlSink := flushio.NewWriteFlusher(xmlFile)
		compilerOpts = append(compilerOpts, compiler.WithXML(xmlSink))
		sinks = flushio.WriteFlushers(vmSink, xmlSink)
	}

	if err := compiler.Compile(clean, vmSink, compilerOpts...); err != nil {
		// An aborted unit leaves no output file behind.
		vmFile.Close()
		os.Remove(vmPath)
		if xmlFile != nil {
			xmlFile.Close()
			os.Remove(xmlFile.Name())
		}
		return err
	}
	if err := sinks.Flush(); err != nil {
		return err
	}

	if opts.Trace != nil {
		fmt.Fprintf(opts.Trace, "compiled %s -> %s", path, vmPath)
		if xmlFile != nil {
			fmt.Fprintf(opts.Trace, " (+%s)", xmlFile.Name())
		}
		fmt.Fprintln(opts.Trace)
	}
	return nil
}

func jackFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".jack" {
			continue
		}
		paths = append(paths, filepath.Join(dir, ent.Name()))
	}
	return paths, nil
}
