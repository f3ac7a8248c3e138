package collective_test

import (
	"context"
	"testing"

	"github.com/jabolina/go-collective/internal/collectivetest"
	"github.com/jabolina/go-collective/pkg/collective"
	"github.com/jabolina/go-collective/pkg/collective/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	sendSeg types.SegmentID = 0
	recvSeg types.SegmentID = 1
	tmpSeg  types.SegmentID = 2
)

func fillSend(t *testing.T, cluster *collectivetest.Cluster, n, nElem int, f func(rank, i int) float64) {
	t.Helper()
	for r := 0; r < n; r++ {
		view, err := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := range view {
			view[i] = f(r, i)
		}
	}
}

// Scenario 1: ring all-reduce SUM, n=4, n_elem=8.
func TestScenarioRingAllReduceSum(t *testing.T) {
	n, nElem := 4, 8
	cluster := collectivetest.NewCluster(n)
	maxChunk := (nElem + n - 1) / n
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, recvSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, tmpSeg, make([]byte, 2*maxChunk*8))
	}
	fillSend(t, cluster, n, nElem, func(r, i int) float64 { return float64(i + r + 1) })

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		send := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		recv := types.SegmentBuffer{Segment: recvSeg, Offset: 0}
		tmp := types.SegmentBuffer{Segment: tmpSeg, Offset: 0}
		return collective.AllReduceRing[float64](context.Background(), cluster.Groups[rank], send, recv, tmp, nElem, types.Sum, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), recvSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < nElem; i++ {
			want := 4*float64(i+1) + 6
			if view[i] != want {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], want)
			}
		}
	}
}

// Scenario 2: binomial broadcast, n=4, n_elem=8, root=0.
func TestScenarioBinomialBroadcast(t *testing.T) {
	n, nElem := 4, 8
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
	}
	const root types.Root = 0
	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), sendSeg, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := range rootView {
		rootView[i] = float64(i + 1)
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		buf := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		return collective.Broadcast[float64](context.Background(), cluster.Groups[rank], buf, nElem, root, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < nElem; i++ {
			if view[i] != float64(i+1) {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], float64(i+1))
			}
		}
	}
}

// Scenario 3: binomial reduce SUM, n=4, n_elem=4, root=0, send[i]=r.
func TestScenarioBinomialReduceSum(t *testing.T) {
	n, nElem := 4, 4
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, recvSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, tmpSeg, make([]byte, nElem*8))
	}
	fillSend(t, cluster, n, nElem, func(r, i int) float64 { return float64(r) })

	preImages := make([][]float64, n)
	for r := 0; r < n; r++ {
		view, _ := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		preImages[r] = append([]float64(nil), view...)
	}

	const root types.Root = 0
	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		send := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		recv := types.SegmentBuffer{Segment: recvSeg, Offset: 0}
		tmp := types.SegmentBuffer{Segment: tmpSeg, Offset: 0}
		return collective.Reduce[float64](context.Background(), cluster.Groups[rank], send, recv, tmp, nElem, types.Sum, root, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
	}

	rootRecv, err := types.View[float64](cluster.Groups[int(root)].Registry(), recvSeg, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := 0; i < nElem; i++ {
		if rootRecv[i] != 6 {
			t.Errorf("root recv[%d] = %v, want 6", i, rootRecv[i])
		}
	}

	for r := 0; r < n; r++ {
		view, _ := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		for i := range view {
			if view[i] != preImages[r][i] {
				t.Errorf("rank %d send buffer mutated at index %d: got %v, want %v", r, i, view[i], preImages[r][i])
			}
		}
	}
}

// Scenario 4: weak binomial reduce SUM, n=4, n_elem=8, threshold=0.5, root=0.
func TestScenarioWeakBinomialReduce(t *testing.T) {
	n, nElem := 4, 8
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, recvSeg, make([]byte, nElem*8))
		cluster.RegisterOn(r, tmpSeg, make([]byte, nElem*8))
	}
	fillSend(t, cluster, n, nElem, func(r, i int) float64 { return float64(i + r + 1) })

	const root types.Root = 0
	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		send := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		recv := types.SegmentBuffer{Segment: recvSeg, Offset: 0}
		tmp := types.SegmentBuffer{Segment: tmpSeg, Offset: 0}
		return collective.ReduceWeak[float64](context.Background(), cluster.Groups[rank], send, recv, tmp, nElem, 0.5, types.Sum, root, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
	}

	view, err := types.View[float64](cluster.Groups[int(root)].Registry(), recvSeg, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := 0; i < 4; i++ {
		want := 4*float64(i) + 10
		if view[i] != want {
			t.Errorf("index %d = %v, want %v", i, view[i], want)
		}
	}
}

// Scenario 5: flat broadcast weak, n=3, n_elem=10, threshold=0.3, root=1.
func TestScenarioFlatBroadcastWeak(t *testing.T) {
	n, nElem := 3, 10
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
	}
	const root types.Root = 1
	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), sendSeg, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := range rootView {
		rootView[i] = float64(100 + i)
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		buf := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		return collective.BroadcastFlatWeak[float64](context.Background(), cluster.Groups[rank], buf, nElem, 0.3, root, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < 3; i++ {
			want := float64(100 + i)
			if view[i] != want {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], want)
			}
		}
	}
}

// Scenario 6: ring all-reduce MAX, int32, n=3, n_elem=5.
func TestScenarioRingAllReduceMax(t *testing.T) {
	n, nElem := 3, 5
	cluster := collectivetest.NewCluster(n)
	maxChunk := (nElem + n - 1) / n
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*4))
		cluster.RegisterOn(r, recvSeg, make([]byte, nElem*4))
		cluster.RegisterOn(r, tmpSeg, make([]byte, 2*maxChunk*4))

		view, err := types.View[int32](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := range view {
			view[i] = int32(10*r + i)
		}
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		send := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		recv := types.SegmentBuffer{Segment: recvSeg, Offset: 0}
		tmp := types.SegmentBuffer{Segment: tmpSeg, Offset: 0}
		return collective.AllReduceRing[int32](context.Background(), cluster.Groups[rank], send, recv, tmp, nElem, types.Max, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
		view, err := types.View[int32](cluster.Groups[r].Registry(), recvSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < nElem; i++ {
			want := int32(20 + i)
			if view[i] != want {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], want)
			}
		}
	}
}

func TestBoundarySingleRankEveryCollective(t *testing.T) {
	n, nElem := 1, 4
	cluster := collectivetest.NewCluster(n)
	cluster.RegisterOn(0, sendSeg, make([]byte, nElem*8))
	cluster.RegisterOn(0, recvSeg, make([]byte, nElem*8))
	cluster.RegisterOn(0, tmpSeg, make([]byte, nElem*8))

	send := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
	recv := types.SegmentBuffer{Segment: recvSeg, Offset: 0}
	tmp := types.SegmentBuffer{Segment: tmpSeg, Offset: 0}
	ctx := context.Background()
	g := cluster.Groups[0]

	if status := collective.Broadcast[float64](ctx, g, send, nElem, 0, 0, types.Block); status != types.StatusSuccess {
		t.Errorf("Broadcast n=1 = %v", status)
	}
	if status := collective.Reduce[float64](ctx, g, send, recv, tmp, nElem, types.Sum, 0, 0, types.Block); status != types.StatusSuccess {
		t.Errorf("Reduce n=1 = %v", status)
	}

	view, _ := types.View[float64](g.Registry(), sendSeg, 0, nElem)
	recvView, _ := types.View[float64](g.Registry(), recvSeg, 0, nElem)
	for i := range view {
		recvView[i] = view[i]
	}
	if status := collective.AllReduceRing[float64](ctx, g, send, recv, tmp, nElem, types.Sum, 0, types.Block); status != types.StatusSuccess {
		t.Errorf("AllReduceRing n=1 = %v", status)
	}
}

func TestBoundaryZeroElementCount(t *testing.T) {
	n := 4
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, 8))
	}
	buf := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
	status := collective.Broadcast[float64](context.Background(), cluster.Groups[0], buf, 0, 0, 0, types.Block)
	if status != types.StatusError {
		t.Fatalf("Broadcast with n_elem=0 = %v, want Error", status)
	}
}

func TestBoundaryThresholdOneEqualsStrong(t *testing.T) {
	n, nElem := 4, 6
	cluster := collectivetest.NewCluster(n)
	for r := 0; r < n; r++ {
		cluster.RegisterOn(r, sendSeg, make([]byte, nElem*8))
	}
	const root types.Root = 0
	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), sendSeg, 0, nElem)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for i := range rootView {
		rootView[i] = float64(i + 1)
	}

	statuses := collectivetest.RunAll(n, func(rank int) types.Status {
		buf := types.SegmentBuffer{Segment: sendSeg, Offset: 0}
		return collective.BroadcastWeak[float64](context.Background(), cluster.Groups[rank], buf, nElem, 1.0, root, 0, types.Block)
	})
	for r := 0; r < n; r++ {
		if statuses[r] != types.StatusSuccess {
			t.Fatalf("rank %d status = %v", r, statuses[r])
		}
		view, err := types.View[float64](cluster.Groups[r].Registry(), sendSeg, 0, nElem)
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		for i := 0; i < nElem; i++ {
			if view[i] != float64(i+1) {
				t.Errorf("rank %d index %d = %v, want %v", r, i, view[i], float64(i+1))
			}
		}
	}
}
