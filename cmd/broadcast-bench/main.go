// Command broadcast-bench drives the binomial-tree broadcast engine over
// an in-process cluster and reports wall-clock statistics, grounded on the
// reference implementation's examples/bcast_bench.cpp.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jabolina/go-collective/bench"
	"github.com/jabolina/go-collective/internal/collectivetest"
	"github.com/jabolina/go-collective/pkg/collective"
	"github.com/jabolina/go-collective/pkg/collective/metrics"
	"github.com/jabolina/go-collective/pkg/collective/types"
	"github.com/prometheus/client_golang/prometheus"
)

// clusterSize is the number of in-process ranks this driver simulates.
const clusterSize = 4

const segmentID types.SegmentID = 0

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintln(os.Stderr, "usage: broadcast-bench <element_count> <iteration_count> [check]")
		os.Exit(1)
	}

	nElem, err := strconv.Atoi(os.Args[1])
	if err != nil || nElem <= 0 {
		fmt.Fprintln(os.Stderr, "element_count must be a positive integer")
		os.Exit(1)
	}
	iterations, err := strconv.Atoi(os.Args[2])
	if err != nil || iterations <= 0 {
		fmt.Fprintln(os.Stderr, "iteration_count must be a positive integer")
		os.Exit(1)
	}
	check := len(os.Args) == 4 && os.Args[3] == "check"

	registry := prometheus.NewRegistry()
	recorder := metrics.New(registry)
	cluster := collectivetest.NewCluster(clusterSize, types.WithMetrics(recorder), types.WithProtocolLabel("broadcast-bench"))
	const root types.Root = 0
	for r := 0; r < clusterSize; r++ {
		cluster.RegisterOn(r, segmentID, bench.AllocSegment[float64](nElem))
	}
	rootView, err := types.View[float64](cluster.Groups[int(root)].Registry(), segmentID, 0, nElem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed allocating root segment: %v\n", err)
		os.Exit(1)
	}
	bench.FillIdentity(0, rootView)

	samples := make([]float64, iterations)
	var lastStatus types.Status
	for iter := 0; iter < iterations; iter++ {
		start := time.Now()
		statuses := collectivetest.RunAll(clusterSize, func(rank int) types.Status {
			buf := types.SegmentBuffer{Segment: segmentID, Offset: 0}
			return collective.Broadcast[float64](context.Background(), cluster.Groups[rank], buf, nElem, root, 0, types.Block)
		})
		samples[iter] = time.Since(start).Seconds()
		for _, s := range statuses {
			lastStatus = s
		}
	}

	if lastStatus != types.StatusSuccess {
		fmt.Printf("broadcast failed: %s\n", lastStatus)
		os.Exit(1)
	}

	if check {
		for r := 0; r < clusterSize; r++ {
			view, err := types.View[float64](cluster.Groups[r].Registry(), segmentID, 0, nElem)
			if err != nil {
				fmt.Fprintf(os.Stderr, "check: %v\n", err)
				os.Exit(1)
			}
			for i, v := range view {
				want := float64(i + 1)
				if v != want {
					fmt.Printf("check failed: rank %d index %d got %v want %v\n", r, i, v, want)
					os.Exit(1)
				}
			}
		}
	}

	summary := bench.Summarize(samples)
	fmt.Printf("%d\t%g\t%g\t%g\n", nElem, summary.Median, summary.Mean, summary.CI95)

	if families, err := registry.Gather(); err == nil {
		fmt.Fprintf(os.Stderr, "collected %d metric families\n", len(families))
	}
	os.Exit(0)
}
