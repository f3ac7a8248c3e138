package broadcast

import (
	"context"
	"testing"

	"github.com/jabolina/go-collective/internal/collectivetest"
	"github.com/jabolina/go-collective/pkg/collective/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const segment types.SegmentID = 0

func setupCluster(t *testing.T, n, nElem int) *collectivetest.Cluster {
	t.Helper()
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, segment, make([]byte, nElem*8))
	}
	return cluster
}

func runBroadcast(t *testing.T, n, nElem int, root types.Root) []types.Status {
	t.Helper()
	cluster := setupCluster(t, n, nElem)

	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), segment, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := range rootView {
		rootView[i] = float64(i + 1)
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		engine := NewEngine(cluster.Hub.Transport(rank), cluster.Hub.Registry(rank), types.NewArbiter(), types.NewConfig(types.Rank(rank), n))
		buf := types.SegmentBuffer{Segment: segment, Offset: 0}
		return Broadcast[float64](context.Background(), engine, buf, nElem, root, 0, types.Block)
	})

	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d broadcast status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), segment, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := range view {
			if view[i] != float64(i+1) {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], float64(i+1))
			}
		}
	}
	return statuses
}

func TestBroadcastVariousSizesRootZero(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8} {
		runBroadcast(t, n, 16, 0)
	}
}

func TestBroadcastGeneralRoot(t *testing.T) {
	runBroadcast(t, 8, 16, 5)
}

func TestBroadcastWeak(t *testing.T) {
	n, nElem := 4, 10
	cluster := setupCluster(t, n, nElem)
	const root types.Root = 0

	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), segment, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := range rootView {
		rootView[i] = float64(i + 1)
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		engine := NewEngine(cluster.Hub.Transport(rank), cluster.Hub.Registry(rank), types.NewArbiter(), types.NewConfig(types.Rank(rank), n))
		buf := types.SegmentBuffer{Segment: segment, Offset: 0}
		return BroadcastWeak[float64](context.Background(), engine, buf, nElem, 0.5, root, 0, types.Block)
	})

	k, _ := types.Threshold(0.5, nElem)
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d broadcast status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), segment, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < k; i++ {
			if view[i] != float64(i+1) {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], float64(i+1))
			}
		}
	}
}

func TestBroadcastInvalidRoot(t *testing.T) {
	n, nElem := 4, 4
	cluster := setupCluster(t, n, nElem)
	engine := NewEngine(cluster.Hub.Transport(0), cluster.Hub.Registry(0), types.NewArbiter(), types.NewConfig(types.Rank(0), n))
	buf := types.SegmentBuffer{Segment: segment, Offset: 0}
	status := Broadcast[float64](context.Background(), engine, buf, nElem, types.Root(n), 0, types.Block)
	if status != types.StatusError {
		t.Fatalf("Broadcast with out-of-range root = %v, want Error", status)
	}
}

func TestBroadcastInvalidElementCount(t *testing.T) {
	n := 4
	cluster := setupCluster(t, n, 4)
	engine := NewEngine(cluster.Hub.Transport(0), cluster.Hub.Registry(0), types.NewArbiter(), types.NewConfig(types.Rank(0), n))
	buf := types.SegmentBuffer{Segment: segment, Offset: 0}
	status := Broadcast[float64](context.Background(), engine, buf, 0, 0, 0, types.Block)
	if status != types.StatusError {
		t.Fatalf("Broadcast with zero element count = %v, want Error", status)
	}
}
