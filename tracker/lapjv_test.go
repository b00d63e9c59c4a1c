package tracker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLapjvTest(t *testing.T, costMatrix [][]float64, expectedX, expectedY []int) {

	solver := newLapSolver(costMatrix)

	if err := solver.solve(); err != nil {
		t.Fatalf("lapjv solve returned an error: %v", err)
	}

	for i := 0; i < len(costMatrix); i++ {
		if solver.x[i] != expectedX[i] {
			t.Errorf("Expected x[%d] = %d, but got %d", i, expectedX[i], solver.x[i])
		}
		if solver.y[i] != expectedY[i] {
			t.Errorf("Expected y[%d] = %d, but got %d", i, expectedY[i], solver.y[i])
		}
	}
}

func TestLapjvSolve(t *testing.T) {
	costMatrix1 := [][]float64{
		{4, 1, 3, 2},
		{2, 0, 5, 3},
		{3, 2, 2, 3},
		{2, 3, 3, 2},
	}

	expectedX1 := []int{3, 1, 2, 0}
	expectedY1 := []int{3, 1, 2, 0}

	costMatrix2 := [][]float64{
		{10, 19, 8, 15},
		{10, 18, 7, 17},
		{13, 16, 9, 14},
		{12, 19, 8, 18},
	}

	expectedX2 := []int{3, 0, 1, 2}
	expectedY2 := []int{1, 2, 3, 0}

	t.Run("Test Case 1", func(t *testing.T) {
		runLapjvTest(t, costMatrix1, expectedX1, expectedY1)
	})

	t.Run("Test Case 2", func(t *testing.T) {
		runLapjvTest(t, costMatrix2, expectedX2, expectedY2)
	})
}

func TestLinearAssignmentThreshold(t *testing.T) {
	// row 0 fits column 1, row 1 fits nothing under the threshold
	cost := [][]float64{
		{0.9, 0.1, 0.95},
		{0.99, 0.97, 0.9},
	}

	res, err := LinearAssignment(cost, 2, 3, 0.8)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 1}}, res.Matches)
	assert.Equal(t, []int{1}, res.UnmatchedRows)
	assert.Equal(t, []int{0, 2}, res.UnmatchedCols)
}

func TestLinearAssignmentGlobalOptimum(t *testing.T) {
	// greedy on row 0 would take column 0 and strand row 1
	cost := [][]float64{
		{0.1, 0.2},
		{0.15, 0.7},
	}

	res, err := LinearAssignment(cost, 2, 2, 0.8)
	require.NoError(t, err)

	assert.ElementsMatch(t, [][2]int{{0, 1}, {1, 0}}, res.Matches)
	assert.Empty(t, res.UnmatchedRows)
	assert.Empty(t, res.UnmatchedCols)
}

func TestLinearAssignmentEmpty(t *testing.T) {
	res, err := LinearAssignment(nil, 0, 3, 0.8)
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	assert.Equal(t, []int{0, 1, 2}, res.UnmatchedCols)

	res, err = LinearAssignment(nil, 2, 0, 0.8)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.UnmatchedRows)
}

// assignmentCost is the extended matrix objective: matched costs plus half
// the threshold for every row and column left unassigned
func assignmentCost(cost [][]float64, rows, cols int, thresh float64, res Assignment) float64 {

	total := 0.0

	for _, m := range res.Matches {
		total += cost[m[0]][m[1]]
	}

	return total + thresh/2*float64(len(res.UnmatchedRows)+len(res.UnmatchedCols))
}

// bruteForceCost enumerates every partial matching under the threshold and
// returns the lowest objective
func bruteForceCost(cost [][]float64, rows, cols int, thresh float64) float64 {

	best := math.Inf(1)
	usedCols := make([]bool, cols)

	var walk func(i, matched int, acc float64)

	walk = func(i, matched int, acc float64) {

		if i == rows {
			total := acc + thresh/2*float64(rows-matched+cols-matched)
			best = math.Min(best, total)
			return
		}

		// row i left unassigned
		walk(i+1, matched, acc)

		for j := 0; j < cols; j++ {
			if usedCols[j] || cost[i][j] > thresh {
				continue
			}

			usedCols[j] = true
			walk(i+1, matched+1, acc+cost[i][j])
			usedCols[j] = false
		}
	}

	walk(0, 0, 0)

	return best
}

// checkAssignment verifies every row and column is reported exactly once
func checkAssignment(t *testing.T, res Assignment, rows, cols int) {
	t.Helper()

	seenRows := make(map[int]bool)
	seenCols := make(map[int]bool)

	for _, m := range res.Matches {
		require.False(t, seenRows[m[0]], "row %d matched twice", m[0])
		require.False(t, seenCols[m[1]], "col %d matched twice", m[1])
		seenRows[m[0]] = true
		seenCols[m[1]] = true
	}

	for _, i := range res.UnmatchedRows {
		require.False(t, seenRows[i], "row %d both matched and unmatched", i)
		seenRows[i] = true
	}

	for _, j := range res.UnmatchedCols {
		require.False(t, seenCols[j], "col %d both matched and unmatched", j)
		seenCols[j] = true
	}

	require.Len(t, seenRows, rows)
	require.Len(t, seenCols, cols)
}

func TestLinearAssignmentStrandedPair(t *testing.T) {
	// row 0 can only take column 2, which a cheaper looking reduction would
	// leave unassigned
	cost := [][]float64{
		{1, 0.869, 0.680, 1, 0.823},
		{1, 0.102, 0.167, 0.353, 0.544},
		{0.186, 1, 0.608, 0.443, 0.919},
	}

	res, err := LinearAssignment(cost, 3, 5, 0.8)
	require.NoError(t, err)

	assert.ElementsMatch(t, [][2]int{{0, 2}, {1, 1}, {2, 0}}, res.Matches)
	assert.Empty(t, res.UnmatchedRows)
	assert.Equal(t, []int{3, 4}, res.UnmatchedCols)
	assert.InDelta(t, 1.768, assignmentCost(cost, 3, 5, 0.8, res), 1e-9)
}

func TestLinearAssignmentMatchesBruteForce(t *testing.T) {

	rng := rand.New(rand.NewSource(42))
	const thresh = 0.8

	for iter := 0; iter < 3000; iter++ {

		rows := 1 + rng.Intn(5)
		cols := 1 + rng.Intn(5)
		cost := make([][]float64, rows)

		for i := range cost {
			cost[i] = make([]float64, cols)

			for j := range cost[i] {
				// coarse steps produce plenty of equal cost alternatives
				if iter%2 == 0 {
					cost[i][j] = float64(rng.Intn(11)) / 10
				} else {
					cost[i][j] = rng.Float64()
				}
			}
		}

		res, err := LinearAssignment(cost, rows, cols, thresh)
		require.NoError(t, err)

		checkAssignment(t, res, rows, cols)

		got := assignmentCost(cost, rows, cols, thresh, res)
		want := bruteForceCost(cost, rows, cols, thresh)

		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("iteration %d: cost %v, optimum %v, matrix %v, result %+v",
				iter, got, want, cost, res)
		}

		for _, m := range res.Matches {
			if cost[m[0]][m[1]] > thresh {
				t.Fatalf("iteration %d: pair %v above threshold", iter, m)
			}
		}
	}
}

func TestLinearAssignmentTieGoesToLowestRow(t *testing.T) {

	tests := []struct {
		name string
		cost [][]float64
		want [][2]int
	}{
		{
			name: "two tracks one detection",
			cost: [][]float64{{0.3}, {0.3}},
			want: [][2]int{{0, 0}},
		},
		{
			name: "three tracks one detection",
			cost: [][]float64{{0.5}, {0.2}, {0.2}},
			want: [][2]int{{1, 0}},
		},
		{
			name: "one track two detections",
			cost: [][]float64{{0.3, 0.3}},
			want: [][2]int{{0, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LinearAssignment(tt.cost, len(tt.cost), len(tt.cost[0]), 0.8)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matches)
		})
	}
}

func TestLinearAssignmentIgnoresNaN(t *testing.T) {

	cost := [][]float64{
		{math.NaN(), 0.4},
		{0.2, math.NaN()},
	}

	res, err := LinearAssignment(cost, 2, 2, 0.8)
	require.NoError(t, err)

	assert.ElementsMatch(t, [][2]int{{0, 1}, {1, 0}}, res.Matches)
}
