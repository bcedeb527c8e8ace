package queryprofile

import "math"

// ZScores returns the population z-score of every element. A slice with
// fewer than two elements or zero variance yields all zeros.
func ZScores(xs []float64) []float64 {
	zs := make([]float64, len(xs))
	if len(xs) < 2 {
		return zs
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	if variance == 0 {
		return zs
	}
	sd := math.Sqrt(variance)
	for i, x := range xs {
		zs[i] = (x - mean) / sd
	}
	return zs
}

// Outliers returns the indexes whose |z-score| exceeds threshold.
func Outliers(xs []float64, threshold float64) []int {
	var out []int
	for i, z := range ZScores(xs) {
		if math.Abs(z) > threshold {
			out = append(out, i)
		}
	}
	return out
}

// Regression is a least-squares line fit y = Slope*x + Intercept.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// LinearRegression fits ys against x = 0..len(ys)-1. Fewer than two points
// yield a flat line through the single value (or zero).
func LinearRegression(ys []float64) Regression {
	n := float64(len(ys))
	if len(ys) == 0 {
		return Regression{}
	}
	if len(ys) == 1 {
		return Regression{Intercept: ys[0]}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return Regression{Intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range ys {
		fit := slope*float64(i) + intercept
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return Regression{Slope: slope, Intercept: intercept, R2: r2}
}

// Trend directions reported by ClassifyTrend.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

// ClassifyTrend buckets a regression slope relative to the mean magnitude
// of the series: slopes under 1% of the mean per step count as flat.
func ClassifyTrend(slope float64, ys []float64) string {
	mean := 0.0
	for _, y := range ys {
		mean += math.Abs(y)
	}
	if len(ys) > 0 {
		mean /= float64(len(ys))
	}
	eps := 0.01 * mean
	switch {
	case slope > eps:
		return TrendRising
	case slope < -eps:
		return TrendFalling
	default:
		return TrendFlat
	}
}
