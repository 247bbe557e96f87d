// math/heading.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import gomath "math"

func Tan(a float32) float32 {
	return float32(gomath.Tan(float64(a)))
}

// NormalizeHeading reduces h to [0,360).
func NormalizeHeading(h float32) float32 {
	if h < 0 {
		return 360 - NormalizeHeading(-h)
	}
	return float32(gomath.Mod(float64(h), 360))
}

// HeadingSignedTurn returns the signed turn in degrees from cur to
// target, in [-180,180]; positive turns are to the right.
func HeadingSignedTurn(cur, target float32) float32 {
	rot := NormalizeHeading(180 - target)
	return 180 - NormalizeHeading(cur+rot)
}
