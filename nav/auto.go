// nav/auto.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

// AutoMode flies the stored mission.
type AutoMode struct {
	leg Leg
}

func (m *AutoMode) Number() Number { return Auto }

func (m *AutoMode) Enter(v *Vehicle) (bool, *Transition) {
	if v.Mission == nil || !v.Mission.Start() {
		v.Log.Warn("AUTO: no mission")
		return false, nil
	}
	m.leg = Leg{}
	return true, nil
}

func (m *AutoMode) Update(v *Vehicle) {
	v.Nav.CalcAttitude(&v.Targets)
}

func (m *AutoMode) Navigate(v *Vehicle) *Transition {
	leg, done := v.Mission.Advance(v.Position.Location())
	if done {
		if leg.Land {
			// Landed; nothing left to do.
			return nil
		}
		return &Transition{To: RTL, Reason: ReasonMissionEnd}
	}

	if leg != m.leg {
		v.Nav.SetupGlideSlope(leg.Prev, leg.Next)
		NavLog(v.Now, NavLogState, "AUTO: leg %s -> %s land=%v", leg.Prev, leg.Next, leg.Land)
		m.leg = leg
	}
	v.Nav.UpdateWaypoint(leg.Prev, leg.Next)
	return nil
}
