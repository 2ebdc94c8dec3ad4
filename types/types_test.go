package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vela-lang/vela/types"
)

func TestEqualStructural(t *testing.T) {
	assert.True(t, types.TInteger.Equal(types.TInteger))
	assert.False(t, types.TInteger.Equal(types.TBoolean))

	a1 := types.NewArray(types.TInteger)
	a2 := types.NewArray(types.TInteger)
	assert.True(t, a1.Equal(a2))
	assert.False(t, a1.Equal(types.NewArray(types.TBoolean)))

	f1 := types.NewFunction([]*types.Type{types.TInteger}, types.TBoolean)
	f2 := types.NewFunction([]*types.Type{types.TInteger}, types.TBoolean)
	assert.True(t, f1.Equal(f2))
	assert.False(t, f1.Equal(types.NewFunction([]*types.Type{types.TBoolean}, types.TBoolean)))
}

func TestInvalidNeverEqual(t *testing.T) {
	assert.False(t, types.TInvalid.Equal(types.TInvalid))
	assert.False(t, types.TInvalid.Equal(types.TInteger))
}

func TestIsNone(t *testing.T) {
	assert.True(t, types.TNone.Equal(types.TNone))
	assert.True(t, (&types.Type{Kind: types.None}).IsNone())
	assert.False(t, types.TVoid.IsNone())
}

func TestFromAnnotationName(t *testing.T) {
	assert.Equal(t, types.TInteger, types.FromAnnotationName("int"))
	assert.Equal(t, types.TBoolean, types.FromAnnotationName("bool"))
	assert.Equal(t, types.TVoid, types.FromAnnotationName("void"))
	assert.Nil(t, types.FromAnnotationName("string"))
}

func TestSymbolTableScoping(t *testing.T) {
	st := types.NewSymbolTable()
	assert.True(t, st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "x", Type: types.TInteger}))
	assert.False(t, st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "x", Type: types.TInteger}))

	st.OpenBlockScope()
	assert.NotNil(t, st.Lookup("x"))
	assert.Nil(t, st.LookupLocal("x"))
	assert.True(t, st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "x", Type: types.TBoolean}))
	assert.Equal(t, types.TBoolean, st.LookupLocal("x").Type)
	st.CloseScope()
	assert.Equal(t, types.TInteger, st.Lookup("x").Type)
}

func TestLoopTracking(t *testing.T) {
	st := types.NewSymbolTable()
	assert.False(t, st.InLoop())
	st.OpenLoopScope()
	assert.True(t, st.InLoop())
	st.OpenBlockScope()
	assert.True(t, st.InLoop(), "nested block inherits loop context")
	st.CloseScope()
	st.CloseScope()
	assert.False(t, st.InLoop())
}

func TestUnusedTracksVariablesNeverLookedUp(t *testing.T) {
	st := types.NewSymbolTable()
	st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "used", Type: types.TInteger})
	st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "unused", Type: types.TInteger})
	st.Lookup("used")
	st.Finish()

	names := make(map[string]bool)
	for _, sym := range st.Unused() {
		names[sym.Name] = true
	}
	assert.True(t, names["unused"])
	assert.False(t, names["used"])
}

func TestUnusedCollectedOnScopeClose(t *testing.T) {
	st := types.NewSymbolTable()
	st.OpenBlockScope()
	st.Insert(&types.Symbol{Kind: types.VariableSymbol, Name: "gone", Type: types.TInteger})
	st.CloseScope()
	st.Finish()
	foundGone := false
	for _, sym := range st.Unused() {
		if sym.Name == "gone" {
			foundGone = true
		}
	}
	assert.True(t, foundGone)
}

func TestFunctionScopeResetsReturnType(t *testing.T) {
	st := types.NewSymbolTable()
	assert.Equal(t, types.TVoid, st.ReturnType())
	st.OpenFunctionScope(types.TInteger)
	assert.Equal(t, types.TInteger, st.ReturnType())
	st.OpenBlockScope()
	assert.Equal(t, types.TInteger, st.ReturnType(), "nested block inherits the function's return type")
}
