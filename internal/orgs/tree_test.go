package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestTreeBasicHierarchy(t *testing.T) {
	a := NewArena([]*Unit{
		{ID: 1, Code: "HQ", LevelOrder: 1},
		{ID: 2, ParentUnitID: ptr(1), Code: "DEPT_A", LevelOrder: 2},
		{ID: 3, ParentUnitID: ptr(1), Code: "DEPT_B", LevelOrder: 1},
		{ID: 4, ParentUnitID: ptr(2), Code: "TEAM_A1", LevelOrder: 1},
	})

	roots := a.Tree()
	require.Len(t, roots, 1)
	require.Equal(t, "HQ", roots[0].Unit.Code)
	require.Len(t, roots[0].Children, 2)
	// дети по level_order
	require.Equal(t, "DEPT_B", roots[0].Children[0].Unit.Code)
	require.Equal(t, "DEPT_A", roots[0].Children[1].Unit.Code)
	require.Len(t, roots[0].Children[1].Children, 1)
	require.Equal(t, "TEAM_A1", roots[0].Children[1].Children[0].Unit.Code)
}

func TestTreeMissingParentBecomesRoot(t *testing.T) {
	a := NewArena([]*Unit{
		{ID: 1, Code: "HQ"},
		{ID: 2, ParentUnitID: ptr(999), Code: "ORPHAN"},
	})
	roots := a.Tree()
	require.Len(t, roots, 2)
}

func TestTreeSelfParentBecomesRoot(t *testing.T) {
	a := NewArena([]*Unit{
		{ID: 1, ParentUnitID: ptr(1), Code: "LOOP"},
	})
	roots := a.Tree()
	require.Len(t, roots, 1)
	require.Empty(t, roots[0].Children)
}

func TestTreeCycleBroken(t *testing.T) {
	// 1 -> 2 -> 1: обход не зависает, один из узлов становится корнем
	a := NewArena([]*Unit{
		{ID: 1, ParentUnitID: ptr(2), Code: "A"},
		{ID: 2, ParentUnitID: ptr(1), Code: "B"},
	})
	roots := a.Tree()
	require.NotEmpty(t, roots)

	total := 0
	var count func(list []*Node)
	count = func(list []*Node) {
		for _, n := range list {
			total++
			count(n.Children)
		}
	}
	count(roots)
	require.Equal(t, 2, total)
}

func TestUnitsPreserveLoadOrder(t *testing.T) {
	a := NewArena([]*Unit{
		{ID: 3, Code: "C"},
		{ID: 1, Code: "A"},
	})
	units := a.Units()
	require.Len(t, units, 2)
	require.Equal(t, "C", units[0].Code)
	u, ok := a.Unit(1)
	require.True(t, ok)
	require.Equal(t, "A", u.Code)
}
