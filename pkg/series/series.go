// Package series projects a label set onto sampled data: which category each
// sample falls under, and which samples each label spans. Unlike the
// widget's hit test, bounds are inclusive here so every sample on a label
// edge is attributed.
package series

import (
	"math"
	"time"

	"github.com/kittclouds/labelgraph/pkg/label"
)

// Point is the category assignment of one sample.
type Point struct {
	X        float64 `json:"x"`
	Category string  `json:"category"`
	Labeled  bool    `json:"labeled"`
}

// Assign returns one Point per sample. When labels overlap, the one listed
// last wins.
func Assign(xs []float64, labels []label.Label) []Point {
	out := make([]Point, len(xs))
	for i, x := range xs {
		out[i] = Point{X: x}
		for j := len(labels) - 1; j >= 0; j-- {
			if labels[j].Covers(x) {
				out[i].Category = labels[j].Category
				out[i].Labeled = true
				break
			}
		}
	}
	return out
}

// Partition returns, for each label, the indices of the samples it covers.
func Partition(xs []float64, labels []label.Label) [][]int {
	out := make([][]int, len(labels))
	for i, l := range labels {
		idx := []int{}
		for j, x := range xs {
			if l.Covers(x) {
				idx = append(idx, j)
			}
		}
		out[i] = idx
	}
	return out
}

// Millis converts t to epoch milliseconds, the x representation of
// datetime axes.
func Millis(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/float64(time.Millisecond)
}

// Time converts epoch milliseconds back to a UTC time.
func Time(ms float64) time.Time {
	sec, frac := math.Modf(ms / 1000)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
