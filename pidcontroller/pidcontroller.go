/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package pidcontroller generates non-uniform step sequences between two float64
// bounds using a PID-style error feedback loop instead of fixed-size increments.
// It backs the duration package's RangeTo/RangeFrom helpers, which need a list of
// intermediate durations that grows denser near the start and end of the range.
package pidcontroller

import (
	"context"
	"math"
)

// maxSteps bounds the loop so degenerate gains (zero or negative) cannot spin forever.
const maxSteps = 10000

// epsilon is the distance-to-target below which the loop considers the target reached.
const epsilon = 1e-9

// Controller computes the next step of a range walk from proportional, integral,
// and derivative gains applied to the remaining distance to the target.
type Controller struct {
	kp float64
	ki float64
	kd float64
}

// New creates a Controller with the given proportional, integral, and derivative rates.
func New(rateP, rateI, rateD float64) *Controller {
	return &Controller{kp: rateP, ki: rateI, kd: rateD}
}

// RangeCtx walks from 'from' to 'to', returning the sequence of values visited
// along the way (including the bounds). Each step size is driven by the PID
// loop's response to the remaining error; when the computed step is zero or
// points the wrong way (e.g. all gains are zero or negative), it falls back to
// a fixed fraction of the remaining distance so the walk always terminates.
//
// The walk stops early, returning whatever has been collected so far, if ctx
// is cancelled before reaching the target.
func (c *Controller) RangeCtx(ctx context.Context, from, to float64) []float64 {
	out := []float64{from}

	if from == to {
		return out
	}

	dir := 1.0
	if to < from {
		dir = -1.0
	}

	var (
		integral float64
		prevErr  float64
		current  = from
	)

	for i := 0; i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			return out
		default:
		}

		errV := to - current
		if math.Abs(errV) <= epsilon {
			break
		}

		integral += errV
		derivative := errV - prevErr
		prevErr = errV

		step := c.kp*errV + c.ki*integral + c.kd*derivative

		// Degenerate gains (zero, negative, or canceling out) never narrow the
		// error; fall back to a fixed fraction of the remaining distance.
		if step == 0 || math.Signbit(step) != math.Signbit(errV) {
			step = errV * 0.25
		}

		current += step

		if dir > 0 && current > to {
			current = to
		} else if dir < 0 && current < to {
			current = to
		}

		out = append(out, current)

		if current == to {
			break
		}
	}

	if out[len(out)-1] != to {
		out = append(out, to)
	}

	return out
}
