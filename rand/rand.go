// rand/rand.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	gomath "math"
	"time"

	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

// Rand is a seedable PCG32 generator. Simulated sensors each own one so
// that a scenario run with a given seed is reproducible regardless of how
// many scenarios run concurrently.
type Rand struct {
	r *pcg.PCG32
}

// Make returns a generator seeded from the current time; call Seed for
// reproducible sequences.
func Make() *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.Seed(time.Now().UnixNano())
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

// Float32 returns a value in [0,1].
func (r *Rand) Float32() float32 {
	return float32(r.r.Random()) / (1<<32 - 1)
}

// Normal returns a normally-distributed value with the given mean and
// standard deviation, via the Box-Muller transform.
func (r *Rand) Normal(mean, stddev float32) float32 {
	u1 := max(float64(r.Float32()), 1e-9)
	u2 := float64(r.Float32())
	z := gomath.Sqrt(-2*gomath.Log(u1)) * gomath.Cos(2*gomath.Pi*u2)
	return mean + stddev*float32(z)
}
