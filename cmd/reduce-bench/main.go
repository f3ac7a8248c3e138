// Command reduce-bench drives the binomial-tree up-sweep reduce engine
// over an in-process cluster and reports wall-clock statistics, grounded
// on the reference implementation's examples/reduce_bench.cpp.
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
	"github.com/jabolina/go-collective/pkg/collective/definition"
	"github.com/jabolina/go-collective/pkg/collective/types"
	"github.com/sirupsen/logrus"
)

const clusterSize = 4

const (
	sendSegment types.SegmentID = 0
	recvSegment types.SegmentID = 1
	tmpSegment  types.SegmentID = 2
)

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintln(os.Stderr, "usage: reduce-bench <element_count> <iteration_count> [check]")
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

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	cluster := collectivetest.NewCluster(clusterSize, types.WithLogger(definition.NewLogrusLogger(log)))
	const root types.Root = 0
	for r := 0; r < clusterSize; r++ {
		cluster.RegisterOn(r, sendSegment, bench.AllocSegment[float64](nElem))
		cluster.RegisterOn(r, recvSegment, bench.AllocSegment[float64](nElem))
		cluster.RegisterOn(r, tmpSegment, bench.AllocSegment[float64](nElem))

		sendView, err := types.View[float64](cluster.Groups[r].Registry(), sendSegment, 0, nElem)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed allocating segment: %v\n", err)
			os.Exit(1)
		}
		bench.FillIdentity(r, sendView)
	}

	samples := make([]float64, iterations)
	var lastStatus types.Status
	for iter := 0; iter < iterations; iter++ {
		start := time.Now()
		statuses := collectivetest.RunAll(clusterSize, func(rank int) types.Status {
			send := types.SegmentBuffer{Segment: sendSegment, Offset: 0}
			recv := types.SegmentBuffer{Segment: recvSegment, Offset: 0}
			tmp := types.SegmentBuffer{Segment: tmpSegment, Offset: 0}
			return collective.Reduce[float64](context.Background(), cluster.Groups[rank], send, recv, tmp, nElem, types.Sum, root, 0, types.Block)
		})
		samples[iter] = time.Since(start).Seconds()
		for _, s := range statuses {
			lastStatus = s
		}
	}

	if lastStatus != types.StatusSuccess {
		fmt.Printf("reduce failed: %s\n", lastStatus)
		os.Exit(1)
	}

	if check {
		view, err := types.View[float64](cluster.Groups[int(root)].Registry(), recvSegment, 0, nElem)
		if err != nil {
			fmt.Fprintf(os.Stderr, "check: %v\n", err)
			os.Exit(1)
		}
		for i, v := range view {
			want := float64(clusterSize*(i+1)) + float64(clusterSize*(clusterSize-1))/2
			if v != want {
				fmt.Printf("check failed: root index %d got %v want %v\n", i, v, want)
				os.Exit(1)
			}
		}
	}

	summary := bench.Summarize(samples)
	fmt.Printf("%d\t%g\t%g\t%g\n", nElem, summary.Median, summary.Mean, summary.CI95)
	os.Exit(0)
}
