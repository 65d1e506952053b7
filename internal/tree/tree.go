// Package tree maintains nested-set indexes for threaded comments.
//
// Every top-level comment of a content object starts its own tree, numbered by
// TreeID. Inside a tree each node owns the interval [Lft, Rgt]; the intervals
// of a node's descendants nest strictly inside its own. Sorting by
// (TreeID, Lft) therefore yields a pre-order walk in which every reply
// directly follows its parent and a subtree is contiguous.
//
// The functions here are pure: they compute positions and renumberings, and
// the caller applies them to storage inside a transaction.
package tree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCycle is returned when parent links loop back on themselves.
	ErrCycle = errors.New("tree: parent links form a cycle")
	// ErrUnknownParent is returned when a node points at a parent outside the set.
	ErrUnknownParent = errors.New("tree: parent not found")
)

// Order is the sibling ordering by submission time.
type Order int

const (
	// Ascending places older siblings first.
	Ascending Order = iota
	// Descending places newer siblings first.
	Descending
)

// ParseOrder reads "asc" or "desc"; anything else means Ascending.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Descending
	}
	return Ascending
}

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Node is the structural view of a comment.
type Node struct {
	ID          uint
	ParentID    *uint
	SubmittedAt time.Time
	TreeID      uint
	Lft         int
	Rgt         int
	Level       int
}

// Contains reports whether n lies in the subtree rooted at ancestor (ancestor included).
func Contains(ancestor, n Node) bool {
	return ancestor.TreeID == n.TreeID && ancestor.Lft <= n.Lft && n.Rgt <= ancestor.Rgt
}

// before reports whether a sorts ahead of b among siblings. IDs break ties so
// the order is total.
func (o Order) before(a, b Node) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		if o == Descending {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}

// goesBefore reports whether a node submitted at t lands ahead of the existing sibling s.
// Ties place the newcomer after existing siblings.
func (o Order) goesBefore(t time.Time, s Node) bool {
	if o == Descending {
		return t.After(s.SubmittedAt)
	}
	return t.Before(s.SubmittedAt)
}

// ChildInsert describes where a reply lands inside its parent's tree.
// Every node of the tree with Lft >= ShiftFrom moves right by 2, and likewise
// every Rgt >= ShiftFrom; then the new node takes [Lft, Rgt].
type ChildInsert struct {
	TreeID    uint
	Lft       int
	Rgt       int
	Level     int
	ShiftFrom int
}

// ChildPosition places a reply submitted at t under parent, given the parent's
// current direct children in any order.
func ChildPosition(parent Node, children []Node, t time.Time, order Order) ChildInsert {
	sorted := append([]Node(nil), children...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lft < sorted[j].Lft })

	pos := parent.Rgt
	for _, sibling := range sorted {
		if order.goesBefore(t, sibling) {
			pos = sibling.Lft
			break
		}
	}

	return ChildInsert{
		TreeID:    parent.TreeID,
		Lft:       pos,
		Rgt:       pos + 1,
		Level:     parent.Level + 1,
		ShiftFrom: pos,
	}
}

// RootInsert describes where a top-level comment lands. Trees with
// TreeID >= ShiftFrom are renumbered up by one when ShiftFrom is non-zero.
type RootInsert struct {
	TreeID    uint
	ShiftFrom uint
}

// RootPosition places a top-level comment submitted at t among the existing roots.
func RootPosition(roots []Node, t time.Time, order Order) RootInsert {
	sorted := append([]Node(nil), roots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TreeID < sorted[j].TreeID })

	var maxTree uint
	for _, root := range sorted {
		if order.goesBefore(t, root) {
			return RootInsert{TreeID: root.TreeID, ShiftFrom: root.TreeID}
		}
		if root.TreeID > maxTree {
			maxTree = root.TreeID
		}
	}
	return RootInsert{TreeID: maxTree + 1}
}

// WouldCycle reports whether giving node nodeID the parent newParent makes the
// node its own ancestor. parents maps every node ID to its parent ID.
func WouldCycle(parents map[uint]*uint, nodeID uint, newParent *uint) bool {
	seen := make(map[uint]bool, len(parents))
	for cur := newParent; cur != nil; {
		if *cur == nodeID || seen[*cur] {
			return true
		}
		seen[*cur] = true
		cur = parents[*cur]
	}
	return false
}

// Rebuild renumbers every node from its parent link alone: roots become trees
// 1..n in sibling order, and each tree is renumbered by a depth-first walk.
// The result is in display order. Nodes not reachable from a root yield ErrCycle;
// a parent outside the set yields ErrUnknownParent.
func Rebuild(nodes []Node, order Order) ([]Node, error) {
	byID := make(map[uint]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	children := make(map[uint][]Node, len(nodes))
	var roots []Node
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if _, ok := byID[*n.ParentID]; !ok {
			return nil, fmt.Errorf("%w: node %d points at %d", ErrUnknownParent, n.ID, *n.ParentID)
		}
		children[*n.ParentID] = append(children[*n.ParentID], n)
	}

	sortSiblings := func(s []Node) {
		sort.SliceStable(s, func(i, j int) bool { return order.before(s[i], s[j]) })
	}
	sortSiblings(roots)
	for id := range children {
		sortSiblings(children[id])
	}

	out := make([]Node, 0, len(nodes))
	var walk func(n Node, treeID uint, level int, counter *int)
	walk = func(n Node, treeID uint, level int, counter *int) {
		n.TreeID = treeID
		n.Level = level
		n.Lft = *counter
		*counter++
		idx := len(out)
		out = append(out, n)
		for _, child := range children[n.ID] {
			walk(child, treeID, level+1, counter)
		}
		out[idx].Rgt = *counter
		*counter++
	}

	for i, root := range roots {
		counter := 1
		walk(root, uint(i+1), 0, &counter)
	}

	if len(out) != len(nodes) {
		return nil, ErrCycle
	}
	return out, nil
}

// Verify checks that nodes, in any order, form a consistent index: intervals
// nest, levels match parent depth and every parent interval contains its children.
func Verify(nodes []Node) error {
	byID := make(map[uint]Node, len(nodes))
	perTree := make(map[uint][]Node)
	for _, n := range nodes {
		if n.Lft >= n.Rgt {
			return fmt.Errorf("node %d: lft %d not below rgt %d", n.ID, n.Lft, n.Rgt)
		}
		byID[n.ID] = n
		perTree[n.TreeID] = append(perTree[n.TreeID], n)
	}

	for _, n := range nodes {
		if n.ParentID == nil {
			if n.Level != 0 || n.Lft != 1 {
				return fmt.Errorf("root %d: want level 0 at lft 1, got level %d at lft %d", n.ID, n.Level, n.Lft)
			}
			continue
		}
		p, ok := byID[*n.ParentID]
		if !ok {
			return fmt.Errorf("%w: node %d points at %d", ErrUnknownParent, n.ID, *n.ParentID)
		}
		if !Contains(p, n) || p.ID == n.ID {
			return fmt.Errorf("node %d lies outside parent %d", n.ID, p.ID)
		}
		if n.Level != p.Level+1 {
			return fmt.Errorf("node %d: level %d under parent level %d", n.ID, n.Level, p.Level)
		}
	}

	for treeID, members := range perTree {
		if err := verifyBounds(treeID, members); err != nil {
			return err
		}
	}
	return nil
}

// verifyBounds checks a single tree uses exactly the bounds 1..2n.
func verifyBounds(treeID uint, members []Node) error {
	used := make(map[int]bool, 2*len(members))
	for _, n := range members {
		for _, b := range []int{n.Lft, n.Rgt} {
			if b < 1 || b > 2*len(members) || used[b] {
				return fmt.Errorf("tree %d: bound %d out of range or reused", treeID, b)
			}
			used[b] = true
		}
	}
	return nil
}
