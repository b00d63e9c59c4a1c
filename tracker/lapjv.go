package tracker

import (
	"errors"
	"math"
)

// lapLarge is the cost given to pairings above the threshold, larger than
// any total the extended matrix can reach through unassigned slots
const lapLarge = 1000000.0

// lapSolver solves the dense square Linear Assignment Problem with the
// Jonker-Volgenant shortest augmenting path method.  Rows are inserted one
// at a time and each is routed to a free column along the shortest path in
// reduced costs, keeping the row and column duals feasible so the result is
// a global optimum.  After solve, x[i] is the column assigned to row i and
// y[j] the row assigned to column j.
type lapSolver struct {
	n    int
	cost [][]float64
	x    []int
	y    []int
	// u and v hold the row and column dual variables
	u []float64
	v []float64
}

// newLapSolver prepares a solver for an n x n cost matrix
func newLapSolver(cost [][]float64) *lapSolver {
	n := len(cost)
	return &lapSolver{
		n:    n,
		cost: cost,
		x:    make([]int, n),
		y:    make([]int, n),
		u:    make([]float64, n),
		v:    make([]float64, n),
	}
}

// solve assigns every row.  Rows are inserted in index order and an
// existing assignment is only displaced by a strictly cheaper path, so
// among equal cost solutions lower rows keep the columns they took first.
func (s *lapSolver) solve() error {

	for i := 0; i < s.n; i++ {
		s.x[i] = -1
		s.y[i] = -1
		s.u[i] = 0
		s.v[i] = 0
	}

	pred := make([]int, s.n)
	minv := make([]float64, s.n)
	used := make([]bool, s.n)

	for i := 0; i < s.n; i++ {
		if err := s.augment(i, pred, minv, used); err != nil {
			return err
		}
	}

	return nil
}

// augment runs the Dijkstra search in reduced costs from row startI to the
// nearest free column, updates the duals and flips the path
func (s *lapSolver) augment(startI int, pred []int, minv []float64, used []bool) error {

	n := s.n

	for j := 0; j < n; j++ {
		minv[j] = math.Inf(1)
		used[j] = false
		pred[j] = -1
	}

	// usedRows are the rows reached by the search, startI first
	usedRows := []int{startI}
	i := startI
	j := -1

	for {
		delta := math.Inf(1)
		next := -1

		for k := 0; k < n; k++ {
			if used[k] {
				continue
			}

			if cur := s.cost[i][k] - s.u[i] - s.v[k]; cur < minv[k] {
				minv[k] = cur
				pred[k] = j
			}

			if minv[k] < delta {
				delta = minv[k]
				next = k
			}
		}

		if next < 0 || math.IsInf(delta, 0) || math.IsNaN(delta) {
			return errors.New("lapjv: no augmenting path found")
		}

		for _, r := range usedRows {
			s.u[r] += delta
		}

		for k := 0; k < n; k++ {
			if used[k] {
				s.v[k] -= delta
			} else {
				minv[k] -= delta
			}
		}

		used[next] = true
		j = next

		if s.y[j] < 0 {
			break
		}

		i = s.y[j]
		usedRows = append(usedRows, i)
	}

	// flip the path back to startI
	for j >= 0 {
		prev := pred[j]

		if prev < 0 {
			s.y[j] = startI
			s.x[startI] = j
		} else {
			s.y[j] = s.y[prev]
			s.x[s.y[j]] = j
		}

		j = prev
	}

	return nil
}

// Assignment is the result of solving a rectangular cost matrix
type Assignment struct {
	// Matches are (row, column) pairs
	Matches [][2]int
	// UnmatchedRows are rows left without a column, in ascending order
	UnmatchedRows []int
	// UnmatchedCols are columns left without a row, in ascending order
	UnmatchedCols []int
}

// LinearAssignment solves the rows x cols cost matrix allowing rows and
// columns to stay unassigned.  A pairing whose cost exceeds thresh is never
// chosen.  The matrix is extended to (rows+cols) square where leaving an
// element unassigned costs thresh/2 on each side.
func LinearAssignment(cost [][]float64, rows, cols int, thresh float64) (Assignment, error) {

	var res Assignment

	if rows == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
		for j := 0; j < cols; j++ {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
		return res, nil
	}

	n := rows + cols
	ext := make([][]float64, n)

	for i := range ext {
		ext[i] = make([]float64, n)

		for j := range ext[i] {
			switch {
			case i < rows && j < cols:
				ext[i][j] = cost[i][j]

				if math.IsNaN(cost[i][j]) || cost[i][j] > thresh {
					ext[i][j] = lapLarge
				}
			case i >= rows && j >= cols:
				ext[i][j] = 0
			default:
				ext[i][j] = thresh / 2
			}
		}
	}

	solver := newLapSolver(ext)

	if err := solver.solve(); err != nil {
		return res, err
	}

	for i := 0; i < rows; i++ {
		j := solver.x[i]

		if j >= 0 && j < cols && !math.IsNaN(cost[i][j]) && cost[i][j] <= thresh {
			res.Matches = append(res.Matches, [2]int{i, j})
		} else {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
	}

	for j := 0; j < cols; j++ {
		if i := solver.y[j]; i < 0 || i >= rows || solver.x[i] != j ||
			math.IsNaN(cost[i][j]) || cost[i][j] > thresh {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
	}

	return res, nil
}
