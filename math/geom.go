// math/geom.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// LinePathProportion returns how far p has progressed along the path
// from p0 to p1, projected onto that path: 0 at p0, 1 at the
// perpendicular through p1, and beyond 1 once that perpendicular has been
// crossed. A degenerate path (p0 == p1) reports 1.
func LinePathProportion(p, p0, p1 [2]float32) float32 {
	path := Sub2f(p1, p0)
	l2 := Dot(path, path)
	if l2 < 1e-12 {
		return 1
	}
	return Dot(Sub2f(p, p0), path) / l2
}
