// Package speed estimates object speed from a rolling window of ground
// plane positions
package speed

import (
	"errors"
	"fmt"
	"math"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
)

// KmphPerMps converts metres per second to kilometres per hour
const KmphPerMps = 3.6

var (
	// ErrInsufficientHistory is returned by Estimate while a track has less
	// than half a window of samples
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidRate is returned for a non positive or non finite sample rate
	ErrInvalidRate = errors.New("invalid sample rate")
)

// Estimator keeps a window of about one second of ground plane vertical
// coordinates per track id and derives speed from its endpoints
type Estimator struct {
	rate     float64
	capacity int
	// factor converts ground units per second to the reported unit
	factor  float64
	history map[int]*History
}

// NewEstimator returns an estimator for samples arriving at rate per second
// reporting km/h when ground units are metres
func NewEstimator(rate float64) (*Estimator, error) {
	return NewEstimatorWithFactor(rate, KmphPerMps)
}

// NewEstimatorWithFactor returns an estimator multiplying ground units per
// second by factor
func NewEstimatorWithFactor(rate, factor float64) (*Estimator, error) {

	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: conversion factor %v", ErrInvalidRate, factor)
	}

	capacity := int(math.Round(rate))

	if capacity < 1 {
		capacity = 1
	}

	return &Estimator{
		rate:     rate,
		capacity: capacity,
		factor:   factor,
		history:  make(map[int]*History),
	}, nil
}

// Capacity returns the window size in samples
func (e *Estimator) Capacity() int {
	return e.capacity
}

// Update appends the vertical coordinate of a ground point to the track's
// window
func (e *Estimator) Update(trackID int, p geometry.Point) {

	h, ok := e.history[trackID]

	if !ok {
		h = NewHistory(e.capacity)
		e.history[trackID] = h
	}

	h.Push(p.Y)
}

// Estimate returns the speed of a track over its window.  Until the window
// is half full ErrInsufficientHistory is returned.
func (e *Estimator) Estimate(trackID int) (float64, error) {

	h, ok := e.history[trackID]

	if !ok || float64(h.Len()) < float64(e.capacity)/2 {
		return 0, ErrInsufficientHistory
	}

	oldest, _ := h.Oldest()
	newest, _ := h.Newest()

	distance := math.Abs(newest - oldest)
	elapsed := float64(h.Len()) / e.rate

	return distance / elapsed * e.factor, nil
}

// Len returns the number of samples held for a track
func (e *Estimator) Len(trackID int) int {

	if h, ok := e.history[trackID]; ok {
		return h.Len()
	}

	return 0
}

// Tracks returns the number of tracks with history
func (e *Estimator) Tracks() int {
	return len(e.history)
}

// Remove drops the window of a track
func (e *Estimator) Remove(trackID int) {
	delete(e.history, trackID)
}

// Reset drops all windows
func (e *Estimator) Reset() {
	e.history = make(map[int]*History)
}
