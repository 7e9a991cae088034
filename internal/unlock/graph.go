// Package unlock resolves the locked/eligible/unlocked status of every node
// in the skill dependency graph. Status is never stored; it is recomputed
// from the current snapshot on every call so backward data corrections can
// never leave a stale "unlocked" flag behind.
package unlock

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/skillforge/engine/internal/condition"
)

// ErrCycle means the skill graph is not a DAG. This is a content bug and is
// fatal at load time: the process must refuse to start rather than serve
// inconsistent unlock data.
var ErrCycle = errors.New("skill graph contains a cycle")

// Status is the derived unlock state of a skill node.
type Status string

const (
	// StatusLocked means one or more prerequisites are not unlocked.
	StatusLocked Status = "locked"
	// StatusEligible means all prerequisites are unlocked but the node's own
	// conditions are not yet met.
	StatusEligible Status = "eligible"
	// StatusUnlocked means prerequisites and conditions are all satisfied.
	StatusUnlocked Status = "unlocked"
)

// Node is an immutable skill graph node definition.
type Node struct {
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	Level         int                   `yaml:"level"`
	Prerequisites []string              `yaml:"prerequisites,omitempty"`
	Conditions    []condition.Condition `yaml:"conditions,omitempty"`
}

// NodeStatus is the resolved state of a single node for one user.
type NodeStatus struct {
	NodeID          string             `json:"node_id"`
	Name            string             `json:"name"`
	Level           int                `json:"level"`
	Status          Status             `json:"status"`
	UnmetConditions []condition.Result `json:"unmet_conditions,omitempty"`
}

// Graph holds skill nodes in a validated topological order.
type Graph struct {
	ordered []Node
	byID    map[string]Node
}

// NewGraph validates the node set and computes a topological order using
// Kahn's algorithm. It fails with ErrCycle if the prerequisites contain a
// cycle, and errors on prerequisites that reference unknown nodes.
func NewGraph(nodes []Node) (*Graph, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("skill node with empty id")
		}
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate skill node id %q", n.ID)
		}
		byID[n.ID] = n
	}

	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] += 0
		for _, pre := range n.Prerequisites {
			if _, ok := byID[pre]; !ok {
				return nil, fmt.Errorf("skill node %q references unknown prerequisite %q", n.ID, pre)
			}
			indegree[n.ID]++
			dependents[pre] = append(dependents[pre], n.ID)
		}
	}

	var queue []string
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	ordered := make([]Node, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(ordered) != len(nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable by topological sort", ErrCycle, len(nodes)-len(ordered), len(nodes))
	}

	return &Graph{ordered: ordered, byID: byID}, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.ordered)
}

// Node returns a node definition by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Resolve recomputes the status of every node against a snapshot. Nodes are
// processed in topological order so a node is never evaluated before its
// prerequisites. A node with an unsupported condition kind degrades to unmet
// rather than failing the whole resolution.
func (g *Graph) Resolve(snap condition.Snapshot) []NodeStatus {
	unlocked := make(map[string]bool, len(g.ordered))
	out := make([]NodeStatus, 0, len(g.ordered))

	for _, n := range g.ordered {
		prereqsOK := true
		for _, pre := range n.Prerequisites {
			if !unlocked[pre] {
				prereqsOK = false
				break
			}
		}

		var unmet []condition.Result
		for _, c := range n.Conditions {
			res, err := condition.Evaluate(c, snap)
			if err != nil {
				slog.Warn("skill condition degraded to unmet",
					"node_id", n.ID,
					"kind", string(c.Kind),
					"error", err,
				)
			}
			if !res.Met {
				unmet = append(unmet, res)
			}
		}

		status := StatusLocked
		switch {
		case prereqsOK && len(unmet) == 0:
			status = StatusUnlocked
			unlocked[n.ID] = true
		case prereqsOK:
			status = StatusEligible
		}

		out = append(out, NodeStatus{
			NodeID:          n.ID,
			Name:            n.Name,
			Level:           n.Level,
			Status:          status,
			UnmetConditions: unmet,
		})
	}

	return out
}
