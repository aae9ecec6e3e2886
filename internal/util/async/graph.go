package async

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Node is a named unit of work that runs once all of its dependencies completed.
type Node struct {
	Name string
	Deps []string
	Run  func(ctx context.Context) error
}

// NodeError reports the node that failed a graph run.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Hooks observe node execution. All fields are optional and must be safe
// for concurrent use.
type Hooks struct {
	OnStart func(node string)
	OnDone  func(node string, elapsed time.Duration, err error)
}

// Graph is a dependency graph evaluated with bounded parallelism. A node
// starts only after every dependency returned successfully; the first
// failure cancels the run and nodes that have not started are skipped.
type Graph struct {
	nodes map[string]Node
	order []string
	limit int64
	hooks Hooks
}

// NewGraph creates a graph running at most limit nodes at once. A limit
// below one means unbounded.
func NewGraph(limit int, hooks Hooks) *Graph {
	return &Graph{nodes: make(map[string]Node), limit: int64(limit), hooks: hooks}
}

// Add registers a node. Names must be unique.
func (g *Graph) Add(n Node) error {
	if n.Name == "" {
		return errors.New("node name is required")
	}
	if n.Run == nil {
		return fmt.Errorf("node %s has no run function", n.Name)
	}
	if _, ok := g.nodes[n.Name]; ok {
		return fmt.Errorf("node %s already registered", n.Name)
	}
	g.nodes[n.Name] = n
	g.order = append(g.order, n.Name)
	return nil
}

// MustAdd is Add for static graph declarations.
func (g *Graph) MustAdd(n Node) {
	if err := g.Add(n); err != nil {
		panic(err)
	}
}

// Nodes returns the registered node names in registration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// TopologicalOrder validates the graph and returns one valid execution
// order. Unknown dependencies and cycles are errors.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, name := range g.order {
		n := g.nodes[name]
		indegree[name] += 0
		for _, dep := range n.Deps {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", name, dep)
			}
			if dep == name {
				return nil, fmt.Errorf("node %s depends on itself", name)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready, order []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(g.order) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle between nodes %v", stuck)
	}
	return order, nil
}

// Run evaluates the graph. It returns nil when every node succeeded, or a
// *NodeError naming the first node that failed.
func (g *Graph) Run(ctx context.Context) error {
	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}

	done := make(map[string]chan struct{}, len(g.nodes))
	for name := range g.nodes {
		done[name] = make(chan struct{})
	}

	var sem *semaphore.Weighted
	if g.limit > 0 {
		sem = semaphore.NewWeighted(g.limit)
	}

	var (
		mu       sync.Mutex
		firstErr *NodeError
	)
	fail := func(name string, err error) error {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = &NodeError{Node: name, Err: err}
		}
		return firstErr
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range g.order {
		n := g.nodes[name]
		eg.Go(func() error {
			for _, dep := range n.Deps {
				select {
				case <-done[dep]:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}

			// Slot is acquired only after dependencies are met.
			if sem != nil {
				if err := sem.Acquire(egCtx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
			}
			if err := egCtx.Err(); err != nil {
				return err
			}

			if g.hooks.OnStart != nil {
				g.hooks.OnStart(n.Name)
			}
			start := time.Now()
			err := n.Run(egCtx)
			if g.hooks.OnDone != nil {
				g.hooks.OnDone(n.Name, time.Since(start), err)
			}
			if err != nil {
				return fail(n.Name, err)
			}
			close(done[n.Name])
			return nil
		})
	}

	err := eg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return err
}
