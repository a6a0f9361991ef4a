// SPDX-License-Identifier: MIT

package analysis

import (
	"math"

	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/dsp"
	"github.com/pointerlabs/clnp/internal/reconstruct"
)

const (
	cogPreWindowMs   = 500
	cogPostStartMs   = 200
	cogPostEndMs     = 700
	cogMinPreSamples = 3
)

// analyzeCog compares tracking error before and after each distractor flash.
// Counting target flashes steals attention from tracking, so a dual-tasking
// human degrades more after flashes of the counted color.
func analyzeCog(s *series, cog *challenge.CogTask, ph reconstruct.Phases, answer *int) CogResult {
	res := CogResult{}
	if cog == nil || ph.DualTaskStart <= 0 {
		return res
	}
	res.TrueCount = cog.TargetCount
	res.Answer = answer
	res.Answered = answer != nil

	errMag := make([]float64, len(s.ts))
	for i := range errMag {
		errMag[i] = math.Hypot(s.ex[i], s.ey[i])
	}

	var target, nonTarget []float64
	for _, fl := range cog.Flashes {
		flashT := ph.DualTaskStart + fl.TimeMs

		var pre, post []float64
		for i, t := range s.ts {
			dt := t - flashT
			switch {
			case dt >= -cogPreWindowMs && dt < 0:
				pre = append(pre, errMag[i])
			case dt >= cogPostStartMs && dt < cogPostEndMs:
				post = append(post, errMag[i])
			}
		}
		if len(pre) < cogMinPreSamples || len(post) < cogMinPreSamples {
			continue
		}
		preMean := dsp.Mean(pre)
		if preMean < 1e-9 {
			continue
		}
		inc := (dsp.Mean(post) - preMean) / preMean
		if fl.IsTarget {
			target = append(target, inc)
		} else {
			nonTarget = append(nonTarget, inc)
		}
	}

	if len(target) == 0 && len(nonTarget) == 0 {
		return res
	}
	res.Valid = true
	if len(target) > 0 {
		res.TargetIncrease = dsp.Mean(target)
	}
	if len(nonTarget) > 0 {
		res.NonTargetIncrease = dsp.Mean(nonTarget)
	}
	res.AttentionEffect = res.TargetIncrease - res.NonTargetIncrease
	return res
}
