package runtime

import (
	"sync"
	"time"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/plan"
)

// Graph is the executable form of a plan: one node per instance, with the
// plan's dependency edges driving readiness.
type Graph struct {
	plan  *plan.Plan
	nodes []*Node
	byID  map[string]*Node

	mu         sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
}

// NewGraph wraps the plan in runnable nodes.
func NewGraph(p *plan.Plan) *Graph {
	g := &Graph{
		plan: p,
		byID: make(map[string]*Node),
	}
	for _, inst := range p.Instances() {
		node := NewNode(inst)
		g.nodes = append(g.nodes, node)
		g.byID[inst.ID] = node
	}
	return g
}

// Plan returns the underlying plan.
func (g *Graph) Plan() *plan.Plan { return g.plan }

// Nodes returns every node in plan order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node returns the node for the instance id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Upstream returns the nodes the given node depends on.
func (g *Graph) Upstream(n *Node) []*Node {
	return g.resolve(g.plan.Upstream(n.inst.ID))
}

// Downstream returns the nodes depending on the given node.
func (g *Graph) Downstream(n *Node) []*Node {
	return g.resolve(g.plan.Downstream(n.inst.ID))
}

func (g *Graph) resolve(instances []*plan.Instance) []*Node {
	nodes := make([]*Node, 0, len(instances))
	for _, inst := range instances {
		if n, ok := g.byID[inst.ID]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Start stamps the graph start time.
func (g *Graph) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startedAt = time.Now()
}

// Finish stamps the graph finish time.
func (g *Graph) Finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finishedAt = time.Now()
}

// StartedAt returns the graph start time.
func (g *Graph) StartedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startedAt
}

// FinishedAt returns the graph finish time, zero while running.
func (g *Graph) FinishedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finishedAt
}

// IsRunning reports whether any node is dispatched or executing.
func (g *Graph) IsRunning() bool {
	for _, n := range g.nodes {
		switch n.Status() {
		case core.InstanceReady, core.InstanceRunning:
			return true
		}
	}
	return false
}

// IsFinished reports whether every node reached a terminal status.
func (g *Graph) IsFinished() bool {
	for _, n := range g.nodes {
		if !n.Status().IsTerminal() {
			return false
		}
	}
	return true
}

// RunningCount returns the number of dispatched or executing nodes. Ready
// counts too: the coordinator marks a node ready before its goroutine
// starts, and the concurrency cap has to see it immediately.
func (g *Graph) RunningCount() int {
	count := 0
	for _, n := range g.nodes {
		switch n.Status() {
		case core.InstanceReady, core.InstanceRunning:
			count++
		}
	}
	return count
}

// Status derives the run status from the node states. Any terminal failure
// makes the run Failed. An abort reports PartiallySucceeded when every
// completed instance succeeded, Aborted when nothing completed.
func (g *Graph) Status() core.Status {
	if g.startedAt.IsZero() {
		return core.NotStarted
	}
	if !g.IsFinished() {
		return core.Running
	}

	var succeeded, failed, aborted int
	for _, n := range g.nodes {
		switch n.Status() {
		case core.InstanceSucceeded, core.InstanceCached:
			succeeded++
		case core.InstanceAborted:
			aborted++
		default:
			failed++
		}
	}
	switch {
	case failed > 0:
		return core.Failed
	case aborted > 0 && succeeded > 0:
		return core.PartiallySucceeded
	case aborted > 0:
		return core.Aborted
	default:
		return core.Succeeded
	}
}
