// SPDX-License-Identifier: MIT

package analysis

import (
	"math"

	"github.com/pointerlabs/clnp/internal/dsp"
)

const (
	crossAxisWindowMs = 400
	crossAxisMinDx    = 2
	crossAxisMinPulse = 2
)

// analyzeCrossAxis measures vertical displacement accompanying the horizontal
// pulse correction. Human limb geometry leaks a little motion onto the
// untouched axis; a coordinate-perfect controller leaks none.
func analyzeCrossAxis(s *series, starts []float64) CrossAxisResult {
	res := CrossAxisResult{}
	var ratios []float64
	for _, start := range starts {
		firstIdx, lastIdx := -1, -1
		for i, t := range s.ts {
			dt := t - start
			if dt < 0 || dt >= crossAxisWindowMs {
				continue
			}
			if firstIdx < 0 {
				firstIdx = i
			}
			lastIdx = i
		}
		if firstIdx < 0 || lastIdx == firstIdx {
			continue
		}
		dx := s.x[lastIdx] - s.x[firstIdx]
		dy := s.y[lastIdx] - s.y[firstIdx]
		if math.Abs(dx) <= crossAxisMinDx {
			continue
		}
		ratios = append(ratios, math.Abs(dy/dx))
	}

	if len(ratios) < crossAxisMinPulse {
		return res
	}
	res.Valid = true
	res.Mean = dsp.Mean(ratios)
	res.SD = dsp.StdDev(ratios)
	res.Pulses = len(ratios)
	return res
}
