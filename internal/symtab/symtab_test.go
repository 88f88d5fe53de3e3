package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/jackc/internal/symtab"
)

func TestClassScopeSlotsContiguous(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("x", "int", symtab.Field))
	require.NoError(t, tab.Define("y", "int", symtab.Field))
	require.NoError(t, tab.Define("count", "int", symtab.Static))

	row, ok := tab.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, 0, row.Index)

	row, ok = tab.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, 1, row.Index)

	row, ok = tab.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, 0, row.Index)

	assert.Equal(t, 2, tab.FieldCount())
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("x", "int", symtab.Field))
	err := tab.Define("x", "int", symtab.Field)
	assert.Error(t, err)
}

func TestSubroutineScopeShadowsClassScope(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("x", "int", symtab.Field))

	tab.StartSubroutine()
	require.NoError(t, tab.Define("x", "char", symtab.Local))

	row, ok := tab.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, symtab.Local, row.Kind)
	assert.Equal(t, "char", row.Type)
}

func TestStartSubroutineResetsCountersButNotClassScope(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("f", "int", symtab.Field))

	tab.StartSubroutine()
	require.NoError(t, tab.Define("a", "int", symtab.Arg))
	require.NoError(t, tab.Define("b", "int", symtab.Local))

	tab.StartSubroutine()
	_, ok := tab.Lookup("a")
	assert.False(t, ok, "subroutine scope must be discarded")

	row, ok := tab.Lookup("f")
	assert.True(t, ok, "class scope survives StartSubroutine")
	assert.Equal(t, 0, row.Index)

	require.NoError(t, tab.Define("c", "int", symtab.Local))
	row, ok = tab.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, 0, row.Index, "local counter must reset to 0")
}

func TestUndeclaredLookupFails(t *testing.T) {
	tab := symtab.New()
	_, err := tab.KindOf("missing")
	assert.Error(t, err)
	_, err = tab.TypeOf("missing")
	assert.Error(t, err)
	_, err = tab.IndexOf("missing")
	assert.Error(t, err)
}

func TestImplicitThisParameter(t *testing.T) {
	tab := symtab.New()
	tab.StartSubroutine()
	require.NoError(t, tab.Define("this", "Point", symtab.Arg))
	require.NoError(t, tab.Define("dx", "int", symtab.Arg))

	row, ok := tab.Lookup("this")
	require.True(t, ok)
	assert.Equal(t, 0, row.Index)

	row, ok = tab.Lookup("dx")
	require.True(t, ok)
	assert.Equal(t, 1, row.Index)
}
