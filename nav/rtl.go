// nav/rtl.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"log/slog"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/math"
	"github.com/mmp/flightmode/util"
)

// RTLState is the per-activation state of RTL. It is reset each time RTL
// is entered.
type RTLState struct {
	// Reference is the start of the current return leg: the location at
	// entry, and then the location where the climb completed.
	Reference av.Location `msgpack:"ref"`
	Target    av.Location `msgpack:"tgt"`

	ClimbCompleted  bool `msgpack:"cc"`
	AutolandChecked bool `msgpack:"ac"`

	LoiterRadius    float32 `msgpack:"lr"`
	LoiterDirection int     `msgpack:"ld"`
}

func (s RTLState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("reference", s.Reference),
		slog.Any("target", s.Target),
		slog.Bool("climb_completed", s.ClimbCompleted),
		slog.Bool("autoland_checked", s.AutolandChecked),
		slog.Float64("loiter_radius", float64(s.LoiterRadius)),
		slog.Int("loiter_direction", s.LoiterDirection))
}

// RTLMode returns the vehicle to the best rally point or home, loiters
// there, and hands off to a vertical landing or a mission landing
// sequence when configured to.
type RTLMode struct {
	state  RTLState
	active bool
}

func (m *RTLMode) Number() Number { return RTL }

// State returns a copy of the current activation state.
func (m *RTLMode) State() RTLState { return m.state }

func (m *RTLMode) Active() bool { return m.active }

func (m *RTLMode) Enter(v *Vehicle) (bool, *Transition) {
	cur := v.Position.Location()
	m.state = RTLState{
		Reference:       cur,
		Target:          v.returnPoint(),
		LoiterDirection: util.Select(v.Params.LoiterRadius < 0, -1, 1),
	}
	m.active = true
	v.Nav.SetupGlideSlope(m.state.Reference, m.state.Target)

	v.Log.Info("RTL entered", slog.Any("state", m.state))
	NavLog(v.Now, NavLogState, "enter: from %s to %s", m.state.Reference, m.state.Target)

	// Don't require the loiter target to have been reached: the navigator
	// may still be reporting on the previous mode's destination.
	return true, m.checkQRTL(v, false)
}

func (m *RTLMode) Exit(v *Vehicle) {
	NavLog(v.Now, NavLogState, "exit: %+v", m.state)
	m.state = RTLState{}
	m.active = false
}

func (m *RTLMode) Update(v *Vehicle) {
	v.Nav.CalcAttitude(&v.Targets)
	m.updateClimb(v)
}

// Navigate decides among continuing to loiter at the return point,
// handing off to a vertical landing, and handing off to the mission's
// landing sequence.
func (m *RTLMode) Navigate(v *Vehicle) *Transition {
	if v.Now.Since(v.LastModeChange) >= v.Params.ModeChangeDebounce() {
		if t := m.checkQRTL(v, true); t != nil {
			return t
		}
		if t := m.checkAutoland(v); t != nil {
			return t
		}
	} else {
		NavLog(v.Now, NavLogSwitch, "hand-off evaluation deferred; %s since last mode change",
			v.Now.Since(v.LastModeChange))
	}

	radius := math.Abs(v.Params.RTLRadius)
	if radius > 0 {
		m.state.LoiterDirection = util.Select(v.Params.RTLRadius < 0, -1, 1)
	}
	m.state.LoiterRadius = radius
	NavLog(v.Now, NavLogLoiter, "loiter at %s radius %.0fm direction %v", m.state.Target,
		m.state.LoiterRadius, m.state.LoiterDirection)
	v.Nav.UpdateLoiter(m.state.Target, m.state.LoiterRadius, m.state.LoiterDirection)

	return nil
}

func (m *RTLMode) checkAutoland(v *Vehicle) *Transition {
	if m.state.AutolandChecked {
		return nil
	}

	switch v.Params.RTLAutoland {
	case AutolandOnReach:
		if !v.Nav.ReachedLoiterTarget() ||
			math.Abs(v.Position.AltitudeError()) >= v.Params.AltitudeErrorTolerance {
			return nil
		}
	case AutolandImmediate:
	default:
		return nil
	}

	// The landing sequence search walks the whole mission; it is done at
	// most once per activation.
	m.state.AutolandChecked = true

	if v.Mission == nil || !v.Mission.JumpToLandingSequence() {
		v.Log.Info("RTL: no landing sequence found", slog.String("policy", v.Params.RTLAutoland.String()))
		return nil
	}

	v.Mission.SetForceResume(true)
	NavLog(v.Now, NavLogSwitch, "landing sequence found (policy %s)", v.Params.RTLAutoland)
	return &Transition{To: Auto, Reason: ReasonRTLCompleteAutoland}
}

// checkQRTL returns a transition to QRTL if the vehicle is a quadplane
// configured to land vertically at the end of RTL and is close enough to
// the return point. If checkLoiterTarget is set, having reached the
// loiter target also counts.
func (m *RTLMode) checkQRTL(v *Vehicle, checkLoiterTarget bool) *Transition {
	if !v.vtolAvailable() || v.VTOL.RTLMode() != QRTLEnabled {
		return nil
	}

	radius := qrtlRadius(v.Params)
	cur := v.Position.Location()
	dist := cur.Distance(m.state.Target)

	if (checkLoiterTarget && v.Nav.ReachedLoiterTarget()) ||
		cur.PastIntervalFinishLine(m.state.Reference, m.state.Target) ||
		dist < max(radius, v.VTOL.StoppingDistance()) {
		NavLog(v.Now, NavLogSwitch, "QRTL: dist %.0fm radius %.0fm stopping %.0fm",
			dist, radius, v.VTOL.StoppingDistance())
		return &Transition{To: QRTL, Reason: ReasonRTLCompleteVTOLLand}
	}
	return nil
}

func qrtlRadius(p *Params) float32 {
	if p.RTLRadius != 0 {
		return math.Abs(p.RTLRadius)
	}
	return math.Abs(p.LoiterRadius)
}
