package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// stateDim is the size of the Kalman state: center x, center y, aspect
// ratio, height and the velocity of each
const stateDim = 8

// measureDim is the size of a measurement in Xyah form
const measureDim = 4

// KalmanState is the mean and covariance of one track's motion estimate
type KalmanState struct {
	Mean       *mat.VecDense
	Covariance *mat.Dense
}

// Xyah returns the position part of the mean
func (s KalmanState) Xyah() Xyah {
	return Xyah{s.Mean.AtVec(0), s.Mean.AtVec(1), s.Mean.AtVec(2), s.Mean.AtVec(3)}
}

// KalmanFilter is a constant velocity filter over box center, aspect
// ratio and height.  Noise is scaled by the box height.
type KalmanFilter struct {
	stdWeightPosition float64
	stdWeightVelocity float64
	// motionMat advances position by velocity over one frame
	motionMat *mat.Dense
	// updateMat projects the state onto the measurement space
	updateMat *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter
func NewKalmanFilter(stdWeightPosition, stdWeightVelocity float64) *KalmanFilter {

	motionMat := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, 1)
	}

	for i := 0; i < measureDim; i++ {
		motionMat.Set(i, measureDim+i, 1)
	}

	updateMat := mat.NewDense(measureDim, stateDim, nil)

	for i := 0; i < measureDim; i++ {
		updateMat.Set(i, i, 1)
	}

	return &KalmanFilter{
		stdWeightPosition: stdWeightPosition,
		stdWeightVelocity: stdWeightVelocity,
		motionMat:         motionMat,
		updateMat:         updateMat,
	}
}

// Initiate creates a state from an unassociated measurement with zero
// velocity
func (kf *KalmanFilter) Initiate(measurement Xyah) KalmanState {

	mean := mat.NewVecDense(stateDim, nil)

	for i := 0; i < measureDim; i++ {
		mean.SetVec(i, measurement[i])
	}

	h := measurement[3]
	pos := 2 * kf.stdWeightPosition * h
	vel := 10 * kf.stdWeightVelocity * h

	std := [stateDim]float64{pos, pos, 1e-2, pos, vel, vel, 1e-5, vel}

	return KalmanState{
		Mean:       mean,
		Covariance: diagSquared(std[:]),
	}
}

// Predict advances the state by one frame
func (kf *KalmanFilter) Predict(s *KalmanState) {

	h := s.Mean.AtVec(3)
	pos := kf.stdWeightPosition * h
	vel := kf.stdWeightVelocity * h

	motionCov := diagSquared([]float64{pos, pos, 1e-2, pos, vel, vel, 1e-5, vel})

	var mean mat.VecDense
	mean.MulVec(kf.motionMat, s.Mean)
	s.Mean = &mean

	var cov mat.Dense
	cov.Product(kf.motionMat, s.Covariance, kf.motionMat.T())
	cov.Add(&cov, motionCov)
	s.Covariance = &cov
}

// Update corrects the state with a measurement
func (kf *KalmanFilter) Update(s *KalmanState, measurement Xyah) error {

	projMean, projCov := kf.project(*s)

	var chol mat.Cholesky

	if ok := chol.Factorize(projCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// kalman gain K solves projCov * K^T = (P * H^T)^T
	var pht mat.Dense
	pht.Mul(s.Covariance, kf.updateMat.T())

	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, pht.T()); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(measureDim, nil)

	for i := 0; i < measureDim; i++ {
		innovation.SetVec(i, measurement[i]-projMean.AtVec(i))
	}

	var correction mat.VecDense
	correction.MulVec(gainT.T(), innovation)

	var mean mat.VecDense
	mean.AddVec(s.Mean, &correction)
	s.Mean = &mean

	// P = P - K * S * K^T
	var kskt mat.Dense
	kskt.Product(gainT.T(), projCov, &gainT)

	var cov mat.Dense
	cov.Sub(s.Covariance, &kskt)
	s.Covariance = &cov

	return nil
}

// project maps the state into measurement space, adding measurement noise
func (kf *KalmanFilter) project(s KalmanState) (*mat.VecDense, *mat.SymDense) {

	h := s.Mean.AtVec(3)
	pos := kf.stdWeightPosition * h
	noise := []float64{pos, pos, 1e-1, pos}

	var mean mat.VecDense
	mean.MulVec(kf.updateMat, s.Mean)

	var hp mat.Dense
	hp.Product(kf.updateMat, s.Covariance, kf.updateMat.T())

	cov := mat.NewSymDense(measureDim, nil)

	for i := 0; i < measureDim; i++ {
		for j := i; j < measureDim; j++ {
			cov.SetSym(i, j, hp.At(i, j))
		}
		cov.SetSym(i, i, cov.At(i, i)+noise[i]*noise[i])
	}

	return &mean, cov
}

// diagSquared returns a diagonal matrix of the squared values
func diagSquared(std []float64) *mat.Dense {

	d := mat.NewDense(len(std), len(std), nil)

	for i, v := range std {
		d.Set(i, i, v*v)
	}

	return d
}
