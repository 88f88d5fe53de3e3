package driver_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/jackc/internal/driver"
)

func writeJack(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileDirWritesSiblingVMFiles(t *testing.T) {
	dir := t.TempDir()
	writeJack(t, dir, "A.jack", `class A { function int seven() { return 7; } }`)
	writeJack(t, dir, "B.jack", `class B { function void noop() { return; } }`)
	writeJack(t, dir, "README.txt", `not jack source`)

	require.NoError(t, driver.CompileDir(context.Background(), dir, driver.Options{Workers: 2}))

	gotA, err := os.ReadFile(filepath.Join(dir, "A.vm"))
	require.NoError(t, err)
	assert.Equal(t, "function A.seven 0\npush constant 7\nreturn\n", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(dir, "B.vm"))
	require.NoError(t, err)
	assert.Equal(t, "function B.noop 0\npush constant 0\nreturn\n", string(gotB))

	_, err = os.Stat(filepath.Join(dir, "README.vm"))
	assert.True(t, os.IsNotExist(err), "non-.jack files must not be compiled")
}

func TestCompileDirAbortsOnFirstErrorPerUnit(t *testing.T) {
	dir := t.TempDir()
	writeJack(t, dir, "Good.jack", `class Good { function void f() { return; } }`)
	writeJack(t, dir, "Bad.jack", `class Bad { function void f() { let x = 1; return; } }`)

	err := driver.CompileDir(context.Background(), dir, driver.Options{Workers: 2})
	require.Error(t, err)

	var unitErr *driver.UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Contains(t, unitErr.Path, "Bad.jack")

	_, err = os.ReadFile(filepath.Join(dir, "Good.vm"))
	assert.NoError(t, err, "Good.jack's unit is unaffected by Bad.jack's error")
}

func TestCompileFileEmitsXMLWhenRequested(t *testing.T) {
	dir := t.TempDir()
	path := writeJack(t, dir, "X.jack", `class X { function void f() { return; } }`)

	require.NoError(t, driver.CompileFile(path, driver.Options{EmitXML: true}))

	xml, err := os.ReadFile(filepath.Join(dir, "X.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(xml), "<class>")
	assert.Contains(t, string(xml), "<keyword> class </keyword>")
}

func TestCompileFileWritesOneTraceLinePerUnit(t *testing.T) {
	dir := t.TempDir()
	path := writeJack(t, dir, "X.jack", `class X { function void f() { return; } }`)

	var trace bytes.Buffer
	require.NoError(t, driver.CompileFile(path, driver.Options{EmitXML: true, Trace: &trace}))

	assert.Contains(t, trace.String(), "compiled "+path)
	assert.Contains(t, trace.String(), "X.vm")
	assert.Contains(t, trace.String(), "X.xml")
}
