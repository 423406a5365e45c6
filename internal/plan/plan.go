// Package plan models PostgreSQL execution plans as produced by
// EXPLAIN (FORMAT JSON [, ANALYZE, BUFFERS]).
//
// The top-level output is a one-element array wrapping a
// {"Plan": …, "Planning Time": …, "Execution Time": …} object; Parse
// unwraps both levels so callers always traverse a plain node tree.
package plan

import (
	"encoding/json"
	"fmt"
)

// Node is one step of an execution plan. Children preserve the source
// order, which is execution order. The tree is constructed fresh per
// analysis call and never mutated.
type Node struct {
	NodeType     string   `json:"Node Type"`
	RelationName string   `json:"Relation Name,omitempty"`
	Alias        string   `json:"Alias,omitempty"`
	IndexName    string   `json:"Index Name,omitempty"`
	Filter       string   `json:"Filter,omitempty"`
	IndexCond    string   `json:"Index Cond,omitempty"`
	HashCond     string   `json:"Hash Cond,omitempty"`
	JoinType     string   `json:"Join Type,omitempty"`
	SortKey      []string `json:"Sort Key,omitempty"`

	StartupCost float64 `json:"Startup Cost"`
	TotalCost   float64 `json:"Total Cost"`
	PlanRows    int64   `json:"Plan Rows"`
	PlanWidth   int     `json:"Plan Width"`

	ActualTotalTime float64 `json:"Actual Total Time,omitempty"`
	ActualRows      int64   `json:"Actual Rows,omitempty"`
	ActualLoops     int64   `json:"Actual Loops,omitempty"`

	Children []Node `json:"Plans,omitempty"`
}

// Explain is the unwrapped top-level EXPLAIN object.
type Explain struct {
	Plan          Node    `json:"Plan"`
	PlanningTime  float64 `json:"Planning Time,omitempty"`
	ExecutionTime float64 `json:"Execution Time,omitempty"`
}

// Parse decodes raw EXPLAIN (FORMAT JSON) output. It accepts both the
// standard one-element array form and a bare explain object.
func Parse(raw []byte) (*Explain, error) {
	var wrapped []Explain
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if len(wrapped) == 0 {
			return nil, fmt.Errorf("plan: empty EXPLAIN output")
		}
		return &wrapped[0], nil
	}

	var single Explain
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("plan: failed to decode EXPLAIN output: %w", err)
	}
	if single.Plan.NodeType == "" {
		return nil, fmt.Errorf("plan: EXPLAIN output has no Plan node")
	}
	return &single, nil
}

// Walk visits every node in pre-order (node before children, children in
// execution order). Traversal never short-circuits: every child is visited
// regardless of what fn observed at the parent.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := range n.Children {
		Walk(&n.Children[i], fn)
	}
}
