package planilha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(t *testing.T, s string) CellAddress {
	t.Helper()
	a, err := ParseAddress(s)
	require.NoError(t, err)
	return a
}

func refs(t *testing.T, addresses ...string) map[CellAddress]struct{} {
	t.Helper()
	m := make(map[CellAddress]struct{}, len(addresses))
	for _, s := range addresses {
		m[addr(t, s)] = struct{}{}
	}
	return m
}

func TestSetDependenciesMaintainsInverse(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "A1", "B1")))

	assert.Equal(t, refs(t, "A1", "B1"), dg.DependsOn(addr(t, "C1")))
	assert.Equal(t, refs(t, "C1"), dg.Dependents(addr(t, "A1")))
	assert.Equal(t, refs(t, "C1"), dg.Dependents(addr(t, "B1")))
}

func TestSetDependenciesReplacesOldEdges(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "A1", "B1")))
	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "B1", "D1")))

	assert.Equal(t, refs(t, "B1", "D1"), dg.DependsOn(addr(t, "C1")))
	assert.Nil(t, dg.Dependents(addr(t, "A1")), "A1 node should be cleaned up")
	assert.Equal(t, refs(t, "C1"), dg.Dependents(addr(t, "D1")))
}

func TestSetDependenciesRejectsDirectCycle(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "A1"), refs(t, "B1")))

	cycleErr := dg.SetDependencies(addr(t, "B1"), refs(t, "A1"))
	require.NotNil(t, cycleErr)
	assert.Equal(t, []CellAddress{addr(t, "B1"), addr(t, "A1"), addr(t, "B1")}, cycleErr.Cycle)

	// the rejected write left the graph untouched
	assert.Empty(t, dg.DependsOn(addr(t, "B1")))
	assert.Equal(t, refs(t, "B1"), dg.DependsOn(addr(t, "A1")))
}

func TestSetDependenciesRejectsSelfReference(t *testing.T) {
	dg := NewDependencyGraph()

	cycleErr := dg.SetDependencies(addr(t, "A1"), refs(t, "A1"))
	require.NotNil(t, cycleErr)
	assert.Equal(t, []CellAddress{addr(t, "A1"), addr(t, "A1")}, cycleErr.Cycle)
	assert.Equal(t, 0, dg.NodeCount())
}

func TestSetDependenciesRejectsTransitiveCycle(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "A1")))
	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "B1")))

	cycleErr := dg.SetDependencies(addr(t, "A1"), refs(t, "C1"))
	require.NotNil(t, cycleErr)
	assert.Len(t, cycleErr.Cycle, 4) // A1 -> C1 -> B1 -> A1
	assert.Equal(t, addr(t, "A1"), cycleErr.Cycle[0])
	assert.Equal(t, addr(t, "A1"), cycleErr.Cycle[len(cycleErr.Cycle)-1])
}

func TestReplacingEdgesCanBreakWouldBeCycle(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "A1")))

	// B1 stops depending on A1, so A1 -> B1 becomes legal
	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "C1")))
	require.Nil(t, dg.SetDependencies(addr(t, "A1"), refs(t, "B1")))
}

func TestRecalcOrderDependenciesFirst(t *testing.T) {
	dg := NewDependencyGraph()

	// diamond: B1 and C1 read A1, D1 reads both
	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "A1")))
	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "A1")))
	require.Nil(t, dg.SetDependencies(addr(t, "D1"), refs(t, "B1", "C1")))

	order := dg.RecalcOrder(addr(t, "A1"))
	require.Len(t, order, 4)
	assert.Equal(t, addr(t, "A1"), order[0])

	pos := make(map[CellAddress]int, len(order))
	for i, a := range order {
		pos[a] = i
	}
	assert.Less(t, pos[addr(t, "B1")], pos[addr(t, "D1")])
	assert.Less(t, pos[addr(t, "C1")], pos[addr(t, "D1")])
}

func TestRecalcOrderIsolatedCell(t *testing.T) {
	dg := NewDependencyGraph()

	order := dg.RecalcOrder(addr(t, "A1"))
	assert.Equal(t, []CellAddress{addr(t, "A1")}, order)
}

func TestOrderCoversAllNodes(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "A1")))
	require.Nil(t, dg.SetDependencies(addr(t, "C1"), refs(t, "B1")))
	require.Nil(t, dg.SetDependencies(addr(t, "E1"), refs(t, "D1")))

	order := dg.Order()
	require.Len(t, order, 5)

	pos := make(map[CellAddress]int, len(order))
	for i, a := range order {
		pos[a] = i
	}
	assert.Less(t, pos[addr(t, "A1")], pos[addr(t, "B1")])
	assert.Less(t, pos[addr(t, "B1")], pos[addr(t, "C1")])
	assert.Less(t, pos[addr(t, "D1")], pos[addr(t, "E1")])
}

func TestHasDependents(t *testing.T) {
	dg := NewDependencyGraph()

	require.Nil(t, dg.SetDependencies(addr(t, "B1"), refs(t, "A1")))
	assert.True(t, dg.HasDependents(addr(t, "A1")))
	assert.False(t, dg.HasDependents(addr(t, "B1")))

	require.Nil(t, dg.SetDependencies(addr(t, "B1"), nil))
	assert.False(t, dg.HasDependents(addr(t, "A1")))
	assert.Equal(t, 0, dg.NodeCount())
}
