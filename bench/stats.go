// Package bench holds the timing and summary-statistics helpers shared by
// the cmd/ benchmark drivers, grounded on the reference implementation's
// examples/common.h and examples/now.h.
package bench

import (
	"math"
	"sort"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Summary is one line of a benchmark driver's output: the median, mean and
// half-width of a 95% confidence interval over a set of per-iteration wall
// times, in seconds.
type Summary struct {
	Median float64
	Mean   float64
	CI95   float64
}

// Summarize computes a Summary over samples. It sorts a copy; samples itself
// is left in its original order.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mean := calculateMean(sorted)
	return Summary{
		Median: median(sorted),
		Mean:   mean,
		CI95:   calculateConfidenceLevel(sorted, mean),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func calculateMean(a []float64) float64 {
	sum := 0.0
	for _, v := range a {
		sum += v
	}
	return sum / float64(len(a))
}

func calculateConfidenceLevel(a []float64, mean float64) float64 {
	sumSq := 0.0
	for _, v := range a {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(a)))
	return 1.96 * (stddev / math.Sqrt(float64(len(a))))
}

// FillIdentity fills a[i] = i + rank + 1, the reference implementation's
// fill_array, used by benchmark drivers to seed per-rank input buffers.
func FillIdentity(rank int, a []float64) {
	for i := range a {
		a[i] = float64(i + rank + 1)
	}
}

// FillZeros zeroes a, the reference implementation's fill_array_zeros.
func FillZeros(a []float64) {
	for i := range a {
		a[i] = 0
	}
}

// AllocSegment allocates a raw byte arena large enough to hold count
// elements of T, suitable for types.Registry.Register.
func AllocSegment[T types.Element](count int) []byte {
	return make([]byte, count*types.ByteWidth[T]())
}
