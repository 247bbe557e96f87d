// nav/climb.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"log/slog"

	"github.com/mmp/flightmode/math"
)

// climbPolicy determines when the vehicle has climbed enough to start
// turning toward the return point.
type climbPolicy int

const (
	climbNone climbPolicy = iota
	// climbAboveTarget requires the altitude to exceed the return altitude.
	climbAboveTarget
	// climbMinimum requires RTLClimbMin meters of climb above the leg's
	// reference.
	climbMinimum
)

func (v *Vehicle) climbPolicy() climbPolicy {
	if v.Params.ClimbBeforeTurn {
		return climbAboveTarget
	} else if v.Params.RTLClimbMin > 0 {
		return climbMinimum
	}
	return climbNone
}

// updateClimb holds the wings near level until the climb threshold is
// met. Once met, the leg is restarted from the current location and the
// wings are released for the rest of the activation.
func (m *RTLMode) updateClimb(v *Vehicle) {
	cur := v.Position.Location()

	var reached bool
	switch v.climbPolicy() {
	case climbAboveTarget:
		reached = cur.Altitude > m.state.Target.Altitude
	case climbMinimum:
		reached = cur.AltitudeAbove(m.state.Reference) > v.Params.RTLClimbMin
	default:
		return
	}

	if !m.state.ClimbCompleted && reached {
		m.state.Reference = cur
		v.Nav.SetupGlideSlope(m.state.Reference, m.state.Target)
		m.state.ClimbCompleted = true

		v.Log.Info("RTL climb complete", slog.Any("location", cur))
		NavLog(v.Now, NavLogClimb, "climb complete at %.0fm", cur.Altitude)
	}

	if !m.state.ClimbCompleted {
		v.Targets.RollLimit = min(v.Targets.RollLimit, v.Params.LevelRollLimit)
		v.Targets.NavRoll = math.Clamp(v.Targets.NavRoll, -v.Targets.RollLimit, v.Targets.RollLimit)
		NavLog(v.Now, NavLogClimb, "climbing: alt %.0fm roll %.1f limit %.1f", cur.Altitude,
			v.Targets.NavRoll, v.Targets.RollLimit)
	}
}
