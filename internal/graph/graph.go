// Package graph orders cases by declared dependency.
//
// The structure is a forest of dependency chains, not a general DAG: each
// case declares at most one dependency, referenced by its study/label/run_id
// key. Nodes are kept in an insertion-ordered arena with adjacency by stable
// index, and the execution order is an explicit, separately computed
// property (non-decreasing level, insertion order within a level).
package graph

import (
	"fmt"
	"sort"
)

// LevelUnset marks a node whose level has not been assigned yet.
const LevelUnset = -1

// Node is the view of a case the graph needs. Level is assigned exactly
// once, at first insertion.
type Node interface {
	// Key is the study/label/run_id reference other cases use in their
	// dependency declaration.
	Key() string
	// DependsOn is the declared dependency key, empty for roots.
	DependsOn() string
	// NProcs is the requested process count, used by sub-graph filters.
	NProcs() int

	Level() int
	SetLevel(int)
}

// Graph is an insertion-ordered dependency forest.
type Graph struct {
	nodes []Node
	index map[Node]int
	// deps maps a dependent node index to its dependency node index.
	deps map[int]int
}

func New() *Graph {
	return &Graph{
		index: make(map[Node]int),
		deps:  make(map[int]int),
	}
}

// AddNode inserts a node once; re-insertion is a no-op. A declared
// dependency must already be present in the graph: dependencies are
// inserted before their dependents, and a reference to an absent case is a
// configuration error. Roots get level 0, dependents their dependency's
// level plus one.
func (g *Graph) AddNode(n Node) error {
	if _, ok := g.index[n]; ok {
		return nil
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n] = idx

	ref := n.DependsOn()
	if ref == "" {
		if n.Level() == LevelUnset {
			n.SetLevel(0)
		}
		return nil
	}

	// Only already-inserted nodes are searched.
	for i, cand := range g.nodes[:idx] {
		if cand.Key() == ref {
			g.deps[idx] = i
			if n.Level() == LevelUnset {
				n.SetLevel(cand.Level() + 1)
			}
			return nil
		}
	}

	// During sub-graph extraction the dependency may have been filtered
	// out; the node keeps its previously assigned level.
	if n.Level() != LevelUnset {
		return nil
	}
	return fmt.Errorf("graph construction: dependency %s of case %s not found", ref, n.Key())
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// ByLevel returns the nodes sorted by non-decreasing level, preserving
// insertion order within a level. This is the execution order: a dependent
// never comes before its dependency.
func (g *Graph) ByLevel() []Node {
	out := g.Nodes()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level() < out[j].Level()
	})
	return out
}

// Levels returns the distinct levels present, ascending.
func (g *Graph) Levels() []int {
	seen := make(map[int]bool)
	var levels []int
	for _, n := range g.nodes {
		if !seen[n.Level()] {
			seen[n.Level()] = true
			levels = append(levels, n.Level())
		}
	}
	sort.Ints(levels)
	return levels
}

// AtLevel returns the nodes of one level in insertion order.
func (g *Graph) AtLevel(level int) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Level() == level {
			out = append(out, n)
		}
	}
	return out
}

// Edge is one (dependent, dependency) pair.
type Edge struct {
	Dependent  Node
	Dependency Node
}

// Dependencies returns the dependency edges with duplicate suppression, in
// insertion order of the dependent.
func (g *Graph) Dependencies() []Edge {
	seen := make(map[[2]int]bool)
	var out []Edge
	for i := range g.nodes {
		j, ok := g.deps[i]
		if !ok {
			continue
		}
		key := [2]int{i, j}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Edge{Dependent: g.nodes[i], Dependency: g.nodes[j]})
	}
	return out
}

// ExtractSubGraph builds a new graph keeping only the nodes matching every
// supplied filter. Nil filters do not constrain; with no filters the result
// has the same nodes and edges as the receiver.
func (g *Graph) ExtractSubGraph(filterLevel, filterNProcs *int) (*Graph, error) {
	sub := New()
	for _, n := range g.nodes {
		if filterLevel != nil && n.Level() != *filterLevel {
			continue
		}
		if filterNProcs != nil && n.NProcs() != *filterNProcs {
			continue
		}
		if err := sub.AddNode(n); err != nil {
			return nil, err
		}
	}
	return sub, nil
}
