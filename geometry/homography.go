package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCalibration is returned when the point correspondences given to
// NewViewTransformer cannot define a homography
var ErrInvalidCalibration = errors.New("invalid calibration")

// collinearTolerance is the relative area below which three calibration
// points are considered to lie on one line
const collinearTolerance = 1e-9

// ViewTransformer maps pixel coordinates onto the ground plane using a fixed
// 3x3 perspective transform
type ViewTransformer struct {
	// m is the row major homography with m[8] == 1
	m [9]float64
}

// NewViewTransformer computes the homography mapping each source point onto
// the target point of the same index.  The points are normalised before the
// DLT solve and the result is denormalised afterwards.
func NewViewTransformer(source, target [4]Point) (*ViewTransformer, error) {

	if err := validateQuad("source", source); err != nil {
		return nil, err
	}

	if err := validateQuad("target", target); err != nil {
		return nil, err
	}

	srcT, srcN := normalise(source)
	dstT, dstN := normalise(target)

	// build the 8x8 system for the normalised correspondences with h33 = 1
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense

	if err := h.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: solving homography: %v", ErrInvalidCalibration, err)
	}

	hn := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})

	// H = inv(Tdst) * Hn * Tsrc
	var dstInv mat.Dense

	if err := dstInv.Inverse(dstT); err != nil {
		return nil, fmt.Errorf("%w: inverting target normalisation: %v", ErrInvalidCalibration, err)
	}

	var full mat.Dense
	full.Product(&dstInv, hn, srcT)

	scale := full.At(2, 2)

	if math.Abs(scale) < 1e-12 || mat.Det(&full) == 0 {
		return nil, fmt.Errorf("%w: singular homography", ErrInvalidCalibration)
	}

	vt := &ViewTransformer{}

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			vt.m[r*3+c] = full.At(r, c) / scale
		}
	}

	for _, v := range vt.m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non finite homography", ErrInvalidCalibration)
		}
	}

	return vt, nil
}

// RectangleTarget returns the ground plane quadrilateral for a target
// rectangle of the given width and height, in the corner order top-left,
// top-right, bottom-right, bottom-left
func RectangleTarget(width, height float64) [4]Point {
	return [4]Point{
		{X: 0, Y: 0},
		{X: width - 1, Y: 0},
		{X: width - 1, Y: height - 1},
		{X: 0, Y: height - 1},
	}
}

// Matrix returns a copy of the homography
func (vt *ViewTransformer) Matrix() *mat.Dense {
	data := make([]float64, 9)
	copy(data, vt.m[:])
	return mat.NewDense(3, 3, data)
}

// TransformPoint applies the homography to a single point.  A point mapping
// to infinity (w == 0) is returned as the origin.
func (vt *ViewTransformer) TransformPoint(p Point) Point {

	m := vt.m
	x := m[0]*p.X + m[1]*p.Y + m[2]
	y := m[3]*p.X + m[4]*p.Y + m[5]
	w := m[6]*p.X + m[7]*p.Y + m[8]

	if math.Abs(w) <= math.SmallestNonzeroFloat32 {
		return Point{}
	}

	return Point{X: x / w, Y: y / w}
}

// Transform applies the homography to every point, preserving order
func (vt *ViewTransformer) Transform(points []Point) []Point {

	out := make([]Point, len(points))

	for i, p := range points {
		out[i] = vt.TransformPoint(p)
	}

	return out
}

// validateQuad checks the four points are finite and no three of them are
// collinear
func validateQuad(name string, quad [4]Point) error {

	for i, p := range quad {
		if !p.IsFinite() {
			return fmt.Errorf("%w: %s point %d is not finite", ErrInvalidCalibration, name, i)
		}
	}

	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if collinear(quad[i], quad[j], quad[k]) {
					return fmt.Errorf("%w: %s points %d, %d, %d are collinear",
						ErrInvalidCalibration, name, i, j, k)
				}
			}
		}
	}

	return nil
}

// collinear reports whether a, b and c lie on one line, relative to the
// lengths of the edges from a
func collinear(a, b, c Point) bool {
	ab := b.Sub(a)
	ac := c.Sub(a)
	return math.Abs(ab.Cross(ac)) <= collinearTolerance*ab.Norm()*ac.Norm()
}

// normalise translates the points to their centroid and scales them so the
// mean distance from the origin is sqrt(2).  It returns the similarity
// transform applied and the transformed points.
func normalise(quad [4]Point) (*mat.Dense, [4]Point) {

	var cx, cy float64

	for _, p := range quad {
		cx += p.X
		cy += p.Y
	}

	cx /= 4
	cy /= 4

	var meanDist float64

	for _, p := range quad {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}

	meanDist /= 4
	s := math.Sqrt2 / meanDist

	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})

	var out [4]Point

	for i, p := range quad {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}

	return t, out
}
