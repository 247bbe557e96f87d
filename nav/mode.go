// nav/mode.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	"log/slog"
	"time"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/log"
)

// Number identifies a flight mode. The values match the mode numbers
// reported over telemetry.
type Number int

const (
	Manual Number = 0
	Auto   Number = 10
	RTL    Number = 11
	QRTL   Number = 21
)

func (n Number) String() string {
	switch n {
	case Manual:
		return "MANUAL"
	case Auto:
		return "AUTO"
	case RTL:
		return "RTL"
	case QRTL:
		return "QRTL"
	default:
		return fmt.Sprintf("MODE(%d)", int(n))
	}
}

// Reason records why a mode change was requested. It is forwarded to
// telemetry and the logs but is otherwise uninterpreted.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonGCSCommand
	ReasonRadioFailsafe
	ReasonBatteryFailsafe
	ReasonMissionEnd
	ReasonRTLCompleteVTOLLand
	ReasonRTLCompleteAutoland
	ReasonInitialized
)

var reasonNames = [...]string{"unknown", "GCS command", "radio failsafe", "battery failsafe",
	"mission end", "RTL complete, switching to VTOL land",
	"RTL complete, switching to fixed-wing autoland", "initialized"}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Transition is returned by a mode to ask the Autopilot to switch modes.
// Once a mode returns one, the rest of that tick's evaluation is skipped;
// the Autopilot performs the switch.
type Transition struct {
	To     Number
	Reason Reason
}

func (t *Transition) LogValue() slog.Value {
	if t == nil {
		return slog.StringValue("none")
	}
	return slog.GroupValue(slog.String("to", t.To.String()), slog.String("reason", t.Reason.String()))
}

// Mode is implemented by every flight mode. Enter is called once when the
// mode is selected; it may refuse (returning false), or accept and
// immediately request a further transition. Afterward Update and then
// Navigate are called once per tick until a transition is requested.
type Mode interface {
	Number() Number
	Enter(v *Vehicle) (bool, *Transition)
	// Update computes the attitude and throttle targets for this tick.
	Update(v *Vehicle)
	// Navigate makes progress toward the mode's goal and decides whether
	// to hand off to another mode.
	Navigate(v *Vehicle) *Transition
}

// Exiter may be implemented by modes that need to release per-activation
// state when another mode takes over.
type Exiter interface {
	Exit(v *Vehicle)
}

///////////////////////////////////////////////////////////////////////////
// Vehicle

// Millis is a monotonic millisecond tick counter. Differences are computed
// with unsigned arithmetic, so wraparound is harmless.
type Millis uint64

// Since returns the time elapsed from prev to m.
func (m Millis) Since(prev Millis) time.Duration {
	return time.Duration(m-prev) * time.Millisecond
}

// AttitudeTargets are the per-tick outputs of a mode: the commanded roll
// and pitch in degrees, throttle in percent, and the roll limit in
// degrees that the attitude controller must respect.
type AttitudeTargets struct {
	NavRoll   float32 `msgpack:"r"`
	NavPitch  float32 `msgpack:"p"`
	Throttle  float32 `msgpack:"t"`
	RollLimit float32 `msgpack:"l"`
}

// PositionSource provides the vehicle's estimated state.
type PositionSource interface {
	Location() av.Location
	// AltitudeError returns the target altitude minus the current
	// altitude, in meters.
	AltitudeError() float32
}

// Navigator is the path-following controller.
type Navigator interface {
	// CalcAttitude fills in roll, pitch, and throttle targets to follow
	// the current path; RollLimit is an input.
	CalcAttitude(t *AttitudeTargets)
	// SetupGlideSlope computes the altitude profile from prev to next.
	SetupGlideSlope(prev, next av.Location)
	// UpdateWaypoint follows the leg from prev to next.
	UpdateWaypoint(prev, next av.Location)
	// UpdateLoiter circles center at the given radius in meters; a zero
	// radius selects the navigator's default.
	UpdateLoiter(center av.Location, radius float32, direction int)
	ReachedLoiterTarget() bool
}

// Leg is a segment of a mission.
type Leg struct {
	Prev, Next av.Location
	Land       bool
}

// Mission is the stored mission and its cursor.
type Mission interface {
	// JumpToLandingSequence moves the cursor to the start of a landing
	// sequence, returning false if the mission has none. It may be
	// expensive.
	JumpToLandingSequence() bool
	// SetForceResume makes the next Start resume from the cursor rather
	// than restarting the mission.
	SetForceResume(bool)
	Start() bool
	// Advance moves the cursor along given the vehicle's location and
	// returns the leg to fly; done is true once the mission is complete.
	Advance(cur av.Location) (leg Leg, done bool)
}

// QRTLHandoff is the configured VTOL behavior at the end of RTL.
type QRTLHandoff int

const (
	QRTLDisabled QRTLHandoff = iota
	QRTLEnabled
	QRTLVTOLApproach
	QRTLAlways
)

// VTOL is the vertical-lift subsystem of a quadplane.
type VTOL interface {
	Available() bool
	RTLMode() QRTLHandoff
	// StoppingDistance is the distance in meters needed to come to a
	// hover from the current speed.
	StoppingDistance() float32
	// Land runs the VTOL position controller toward a landing at target.
	Land(target av.Location)
}

// BaseProvider gives the candidate points for returning to base.
type BaseProvider interface {
	Home() av.Location
	RallyPoints() []av.Location
}

// Vehicle is the context passed to modes each tick. Modes read the
// collaborators and parameters and write only Targets.
type Vehicle struct {
	Params *Params

	// Now is the current tick time and LastModeChange the time of the most
	// recent mode change; both are set by the Autopilot.
	Now            Millis
	LastModeChange Millis

	Position PositionSource
	Nav      Navigator
	Mission  Mission // may be nil
	VTOL     VTOL    // may be nil for fixed-wing vehicles
	Base     BaseProvider

	// Pilot holds the stick inputs, used directly in manual flight.
	Pilot   AttitudeTargets
	Targets AttitudeTargets

	Log *log.Logger
}

func (v *Vehicle) vtolAvailable() bool {
	return v.VTOL != nil && v.VTOL.Available()
}

// returnPoint is where RTL and QRTL head: the best rally point or home
// at the RTL altitude.
func (v *Vehicle) returnPoint() av.Location {
	cur := v.Position.Location()
	home := v.Base.Home()
	alt := av.RTLAltitude(cur, home, v.Params.RTLAltitude)
	return av.BestRallyOrHome(cur, home, v.Base.RallyPoints(), v.Params.RallyLimit, alt)
}
