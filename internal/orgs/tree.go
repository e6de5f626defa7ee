// Package orgs — оргструктура: плоская арена подразделений, дерево строится
// по запросу.
package orgs

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"fabrika/internal/apperr"
)

type Unit struct {
	ID           int64     `json:"id"`
	ParentUnitID *int64    `json:"parent_unit_id,omitempty"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	UnitType     string    `json:"unit_type,omitempty"`
	Description  string    `json:"description,omitempty"`
	LevelOrder   int       `json:"level_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Node — узел дерева подразделений.
type Node struct {
	Unit     *Unit   `json:"unit"`
	Children []*Node `json:"children,omitempty"`
}

// Arena — плоское хранилище подразделений. Parent-ссылки держим по id,
// иерархия считается на лету в Tree().
type Arena struct {
	byID  map[int64]*Unit
	order []int64
}

// Load читает активные подразделения из таблицы.
func Load(ctx context.Context, db *sql.DB) (*Arena, error) {
	rows, err := db.QueryContext(ctx, `
		select id, parent_unit_id, code, name, unit_type, description,
		       level_order, is_active, created_at, updated_at
		from organizational_units
		where is_active
		order by level_order, id`)
	if err != nil {
		return nil, apperr.Store("orgs.load", err)
	}
	defer rows.Close()

	a := &Arena{byID: make(map[int64]*Unit)}
	for rows.Next() {
		u := &Unit{}
		if err := rows.Scan(&u.ID, &u.ParentUnitID, &u.Code, &u.Name, &u.UnitType,
			&u.Description, &u.LevelOrder, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, apperr.Store("orgs.load", err)
		}
		a.byID[u.ID] = u
		a.order = append(a.order, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("orgs.load", err)
	}
	return a, nil
}

func NewArena(units []*Unit) *Arena {
	a := &Arena{byID: make(map[int64]*Unit, len(units))}
	for _, u := range units {
		a.byID[u.ID] = u
		a.order = append(a.order, u.ID)
	}
	return a
}

func (a *Arena) Unit(id int64) (*Unit, bool) {
	u, ok := a.byID[id]
	return u, ok
}

func (a *Arena) Units() []*Unit {
	out := make([]*Unit, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byID[id])
	}
	return out
}

// Tree строит иерархию. Узел с отсутствующим или зацикленным родителем
// становится корнем — битые данные не валят обход.
func (a *Arena) Tree() []*Node {
	nodes := make(map[int64]*Node, len(a.byID))
	for _, id := range a.order {
		nodes[id] = &Node{Unit: a.byID[id]}
	}

	var roots []*Node
	for _, id := range a.order {
		n := nodes[id]
		pid := n.Unit.ParentUnitID
		if pid == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*pid]
		if !ok || *pid == id || inAncestry(nodes, *pid, id) {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sortNodes(roots)
	return roots
}

// inAncestry — true, если candidate встречается среди предков start
// (защита от циклов parent-ссылок).
func inAncestry(nodes map[int64]*Node, start, candidate int64) bool {
	seen := make(map[int64]struct{})
	cur := start
	for {
		if cur == candidate {
			return true
		}
		if _, dup := seen[cur]; dup {
			return false // цикл без candidate
		}
		seen[cur] = struct{}{}
		n, ok := nodes[cur]
		if !ok || n.Unit.ParentUnitID == nil {
			return false
		}
		cur = *n.Unit.ParentUnitID
	}
}

func sortNodes(list []*Node) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Unit.LevelOrder != list[j].Unit.LevelOrder {
			return list[i].Unit.LevelOrder < list[j].Unit.LevelOrder
		}
		return list[i].Unit.ID < list[j].Unit.ID
	})
	for _, n := range list {
		sortNodes(n.Children)
	}
}
