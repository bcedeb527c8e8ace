package queryprofile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZScores(t *testing.T) {
	zs := ZScores([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	// Classic dataset: mean 5, population sd 2.
	assert.InDelta(t, -1.5, zs[0], 1e-9)
	assert.InDelta(t, 2.0, zs[7], 1e-9)

	assert.Equal(t, []float64{0}, ZScores([]float64{42}))
	assert.Equal(t, []float64{0, 0, 0}, ZScores([]float64{3, 3, 3}), "zero variance")
	assert.Empty(t, ZScores(nil))
}

func TestOutliers(t *testing.T) {
	xs := []float64{10, 11, 9, 10, 10, 11, 9, 100}
	out := Outliers(xs, 2)
	assert.Equal(t, []int{7}, out)

	assert.Nil(t, Outliers([]float64{1, 1, 1}, 2))
}

func TestLinearRegression_PerfectLine(t *testing.T) {
	// y = 2x + 1
	r := LinearRegression([]float64{1, 3, 5, 7, 9})
	assert.InDelta(t, 2.0, r.Slope, 1e-9)
	assert.InDelta(t, 1.0, r.Intercept, 1e-9)
	assert.InDelta(t, 1.0, r.R2, 1e-9)
}

func TestLinearRegression_Flat(t *testing.T) {
	r := LinearRegression([]float64{5, 5, 5, 5})
	assert.InDelta(t, 0.0, r.Slope, 1e-9)
	assert.InDelta(t, 5.0, r.Intercept, 1e-9)
	assert.InDelta(t, 1.0, r.R2, 1e-9, "a constant series is fit exactly")
}

func TestLinearRegression_Degenerate(t *testing.T) {
	assert.Equal(t, Regression{}, LinearRegression(nil))

	r := LinearRegression([]float64{7})
	assert.Equal(t, 7.0, r.Intercept)
	assert.Equal(t, 0.0, r.Slope)
}

func TestLinearRegression_NoisyRising(t *testing.T) {
	r := LinearRegression([]float64{1, 2.2, 2.8, 4.1, 5.2})
	assert.Greater(t, r.Slope, 0.9)
	assert.Greater(t, r.R2, 0.95)
}

func TestClassifyTrend(t *testing.T) {
	rising := []float64{10, 12, 14, 16}
	assert.Equal(t, TrendRising, ClassifyTrend(LinearRegression(rising).Slope, rising))

	falling := []float64{16, 14, 12, 10}
	assert.Equal(t, TrendFalling, ClassifyTrend(LinearRegression(falling).Slope, falling))

	flat := []float64{100, 100.1, 99.9, 100}
	assert.Equal(t, TrendFlat, ClassifyTrend(LinearRegression(flat).Slope, flat))

	assert.Equal(t, TrendFlat, ClassifyTrend(0, nil))
}