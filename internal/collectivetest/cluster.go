// Package collectivetest builds in-process n-rank clusters over
// core.ReferenceHub for package tests and the cmd/ benchmark drivers,
// adapted from the teacher's test.UnityCluster/TestInvoker harness.
package collectivetest

import (
	"sync"

	"github.com/jabolina/go-collective/pkg/collective"
	"github.com/jabolina/go-collective/pkg/collective/core"
	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Cluster is an n-rank in-process group: one Hub, one Group handle per
// rank.
type Cluster struct {
	Hub    *core.ReferenceHub
	Groups []*collective.Group
	Size   int
}

// NewCluster builds a Cluster of size n, applying the same options to
// every rank's Config.
func NewCluster(n int, opts ...types.Option) *Cluster {
	hub := core.NewReferenceHub(n, types.NopLogger{})
	groups := make([]*collective.Group, n)
	for i := 0; i < n; i++ {
		cfg := types.NewConfig(types.Rank(i), n, opts...)
		groups[i] = collective.NewGroup(hub.Transport(i), hub.Registry(i), cfg)
	}
	return &Cluster{Hub: hub, Groups: groups, Size: n}
}

// RegisterOn registers buf as segment id on rank's registry only.
func (c *Cluster) RegisterOn(rank int, id types.SegmentID, buf []byte) {
	c.Groups[rank].Registry().Register(id, buf)
}

// Invoker holds a WaitGroup and has no methods of its own; running a
// function on every rank concurrently and collecting its results is done
// by RunAll below.
type Invoker struct {
	wg *sync.WaitGroup
}

// NewInvoker returns an empty Invoker.
func NewInvoker() *Invoker {
	return &Invoker{wg: &sync.WaitGroup{}}
}

// RunAll calls fn(rank) once per rank in [0,n) on its own goroutine and
// blocks until every call returns, collecting results indexed by rank.
func RunAll[T any](n int, fn func(rank int) T) []T {
	results := make([]T, n)
	wg := sync.WaitGroup{}
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(rank int) {
			defer wg.Done()
			results[rank] = fn(rank)
		}(i)
	}
	wg.Wait()
	return results
}
