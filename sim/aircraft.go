// sim/aircraft.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"time"

	"github.com/brunoga/deep"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/math"
	"github.com/mmp/flightmode/nav"
	"github.com/mmp/flightmode/rand"
)

const (
	gravity = 9.80665 // m/s^2

	// Navigator gains.
	rollPerHeadingError = 1.5  // degrees of roll per degree of heading error
	pitchPerAltError    = 0.25 // degrees of pitch per meter of altitude error
	minPitch            = 2    // degrees, whenever off the target altitude
	maxPitch            = 15
	loiterCaptureMargin = 1.25

	// VTOL performance.
	hoverDecel  = 2.5 // m/s^2
	hoverSpeed  = 5   // m/s
	descentRate = 1.5 // m/s
	// Hover translation ends and the descent begins within this distance.
	landCapture = 1 // m

	// Touchdown is declared within this height of the ground.
	touchdownHeight = 0.5 // m

	breadcrumbMs = 1000
	breadcrumbs  = 60
)

type navigatorMode int

const (
	navNone navigatorMode = iota
	navWaypoint
	navLoiter
	navVTOLLand
)

func (m navigatorMode) String() string {
	return [...]string{"none", "waypoint", "loiter", "vtol-land"}[m]
}

// AircraftConfig describes the simulated airframe.
type AircraftConfig struct {
	Airspeed float32 `json:"airspeed"` // m/s
	// VTOL is set for quadplanes.
	VTOL bool `json:"vtol"`
	// AltitudeNoise is the standard deviation in meters of the noise added
	// to the reported altitude error.
	AltitudeNoise float32 `json:"altitude_noise"`
	Seed          int64   `json:"seed"`
}

// AircraftState is the complete kinematic and navigator state of a
// simulated aircraft.
type AircraftState struct {
	// Local is the position in meters east and north of home; Location
	// is derived from it. Integrating in the local frame avoids losing
	// small movements to the limited precision of float32 latitude and
	// longitude.
	Local    [2]float32  `msgpack:"xy"`
	Location av.Location `msgpack:"l"`
	Heading  float32     `msgpack:"h"` // degrees true
	Airspeed float32     `msgpack:"s"`
	Roll     float32     `msgpack:"r"`
	Pitch    float32     `msgpack:"p"`
	OnGround bool        `msgpack:"g"`

	NavMode         navigatorMode `msgpack:"nm"`
	LegStart        av.Location   `msgpack:"ls"`
	LegEnd          av.Location   `msgpack:"le"`
	GlideStart      av.Location   `msgpack:"gs"`
	GlideEnd        av.Location   `msgpack:"ge"`
	LoiterCenter    av.Location   `msgpack:"lc"`
	LoiterRadius    float32       `msgpack:"lr"`
	LoiterDirection int           `msgpack:"ld"`
	LoiterCaptured  bool          `msgpack:"lx"`
	LandTarget      av.Location   `msgpack:"lt"`

	// Breadcrumbs is the recent track, one point a second, oldest first.
	Breadcrumbs []av.Location `msgpack:"b"`
	LastCrumb   nav.Millis    `msgpack:"bt"`
}

// Aircraft is a point-mass fixed-wing aircraft with optional vertical
// lift. It provides the position, navigation, and VTOL interfaces that
// flight modes consume.
type Aircraft struct {
	State  AircraftState
	Config AircraftConfig

	home           av.Location
	nmPerLongitude float32
	params         *nav.Params
	rand           *rand.Rand
	lg             *log.Logger
}

// NewAircraft returns an aircraft at start; the ground is taken to be at
// home's altitude.
func NewAircraft(cfg AircraftConfig, start av.Location, heading float32, home av.Location,
	params *nav.Params, lg *log.Logger) *Aircraft {
	r := rand.Make()
	if cfg.Seed != 0 {
		r.Seed(cfg.Seed)
	}
	ac := &Aircraft{
		State: AircraftState{
			Location: start,
			Heading:  heading,
			Airspeed: cfg.Airspeed,
			GlideEnd: start,
		},
		Config:         cfg,
		home:           home,
		nmPerLongitude: math.NMPerLongitudeAt(home.Position.Latitude()),
		params:         params,
		rand:           r,
		lg:             lg,
	}
	ac.State.Local = ac.toLocal(start)
	return ac
}

// toLocal returns l's position in meters east and north of home.
func (ac *Aircraft) toLocal(l av.Location) [2]float32 {
	d := math.Sub2f(math.LL2NM(l.Position, ac.nmPerLongitude), math.LL2NM(ac.home.Position, ac.nmPerLongitude))
	return math.Scale2f(d, math.MetersPerNM)
}

func (ac *Aircraft) fromLocal(p [2]float32) math.Point2LL {
	return math.NM2LL(math.Add2f(math.LL2NM(ac.home.Position, ac.nmPerLongitude), math.Scale2f(p, math.NMPerMeter)),
		ac.nmPerLongitude)
}

// move advances the aircraft dist meters along heading hdg.
func (ac *Aircraft) move(hdg, dist float32) {
	s := &ac.State
	s.Local = math.Add2f(s.Local, math.Scale2f(math.SinCos(math.Radians(hdg)), dist))
	s.Location.Position = ac.fromLocal(s.Local)
}

// Snapshot returns a deep copy of the aircraft's state.
func (ac *Aircraft) Snapshot() AircraftState {
	return deep.MustCopy(ac.State)
}

func (ac *Aircraft) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("location", ac.State.Location),
		slog.Float64("heading", float64(ac.State.Heading)),
		slog.String("nav_mode", ac.State.NavMode.String()),
		slog.Bool("on_ground", ac.State.OnGround))
}

///////////////////////////////////////////////////////////////////////////
// nav.PositionSource

func (ac *Aircraft) Location() av.Location { return ac.State.Location }

func (ac *Aircraft) AltitudeError() float32 {
	err := ac.targetAltitude() - ac.State.Location.Altitude
	if ac.Config.AltitudeNoise > 0 {
		err += ac.rand.Normal(0, ac.Config.AltitudeNoise)
	}
	return err
}

// targetAltitude interpolates along the glide slope when descending;
// climbs go straight to the higher altitude.
func (ac *Aircraft) targetAltitude() float32 {
	s := &ac.State
	if s.GlideEnd.Altitude >= s.GlideStart.Altitude {
		return s.GlideEnd.Altitude
	}
	t := math.Clamp(s.Location.LinePathProportion(s.GlideStart, s.GlideEnd), 0, 1)
	return math.Lerp(t, s.GlideStart.Altitude, s.GlideEnd.Altitude)
}

///////////////////////////////////////////////////////////////////////////
// nav.Navigator

func (ac *Aircraft) SetupGlideSlope(prev, next av.Location) {
	ac.State.GlideStart, ac.State.GlideEnd = prev, next
}

func (ac *Aircraft) UpdateWaypoint(prev, next av.Location) {
	s := &ac.State
	s.NavMode = navWaypoint
	s.LegStart, s.LegEnd = prev, next
}

func (ac *Aircraft) UpdateLoiter(center av.Location, radius float32, direction int) {
	s := &ac.State
	if radius == 0 {
		radius = math.Abs(ac.params.LoiterRadius)
	}
	if s.NavMode != navLoiter || s.LoiterCenter.Position != center.Position {
		s.LoiterCaptured = false
	}
	s.NavMode = navLoiter
	s.LoiterCenter = center
	s.LoiterRadius = radius
	s.LoiterDirection = direction

	if s.Location.Distance(center) <= radius*loiterCaptureMargin {
		s.LoiterCaptured = true
	}
}

func (ac *Aircraft) ReachedLoiterTarget() bool {
	return ac.State.NavMode == navLoiter && ac.State.LoiterCaptured
}

// desiredHeading returns the heading to steer to follow the current
// path.
func (ac *Aircraft) desiredHeading() float32 {
	s := &ac.State
	switch s.NavMode {
	case navWaypoint:
		return s.Location.Heading(s.LegEnd)

	case navLoiter:
		dist := s.Location.Distance(s.LoiterCenter)
		if dist > 2*s.LoiterRadius {
			return s.Location.Heading(s.LoiterCenter)
		}
		// Fly tangent to the circle, turning in toward it when outside
		// and away when inside.
		radial := s.LoiterCenter.Heading(s.Location)
		correction := math.Clamp(45*(dist-s.LoiterRadius)/s.LoiterRadius, -45, 45)
		return math.NormalizeHeading(radial + float32(s.LoiterDirection)*(90+correction))

	default:
		return s.Heading
	}
}

func (ac *Aircraft) CalcAttitude(t *nav.AttitudeTargets) {
	s := &ac.State
	turn := math.HeadingSignedTurn(s.Heading, ac.desiredHeading())
	t.NavRoll = math.Clamp(rollPerHeadingError*turn, -t.RollLimit, t.RollLimit)

	altErr := ac.targetAltitude() - s.Location.Altitude
	t.NavPitch = math.Clamp(pitchPerAltError*altErr+math.Sign(altErr)*minPitch, -maxPitch, maxPitch)
	t.Throttle = math.Clamp(50+3*t.NavPitch, 0, 100)
}

///////////////////////////////////////////////////////////////////////////
// nav.VTOL

func (ac *Aircraft) Available() bool { return ac.Config.VTOL }

func (ac *Aircraft) RTLMode() nav.QRTLHandoff {
	if !ac.Config.VTOL {
		return nav.QRTLDisabled
	}
	return ac.params.QRTLMode
}

func (ac *Aircraft) StoppingDistance() float32 {
	if !ac.Config.VTOL || ac.State.NavMode == navVTOLLand {
		return 0
	}
	return math.Sqr(ac.State.Airspeed) / (2 * hoverDecel)
}

func (ac *Aircraft) Land(target av.Location) {
	s := &ac.State
	if s.NavMode != navVTOLLand {
		ac.lg.Info("VTOL landing", slog.Any("target", target))
	}
	s.NavMode = navVTOLLand
	s.LandTarget = target
}

///////////////////////////////////////////////////////////////////////////
// Kinematics

// Step advances the aircraft by dt seconds flying the given targets.
func (ac *Aircraft) Step(now nav.Millis, dt float32, t nav.AttitudeTargets) {
	s := &ac.State
	if s.OnGround {
		return
	}

	if s.NavMode == navVTOLLand {
		ac.stepHover(dt)
	} else {
		s.Roll = math.Clamp(t.NavRoll, -t.RollLimit, t.RollLimit)
		s.Pitch = t.NavPitch

		// Coordinated turn.
		rate := math.Degrees(gravity * math.Tan(math.Radians(s.Roll)) / s.Airspeed)
		s.Heading = math.NormalizeHeading(s.Heading + rate*dt)

		ac.move(s.Heading, s.Airspeed*dt)
		s.Location.Altitude += s.Airspeed * math.Sin(math.Radians(s.Pitch)) * dt
	}

	if s.Location.Altitude <= ac.home.Altitude+touchdownHeight {
		s.Location.Altitude = ac.home.Altitude
		s.OnGround = true
		s.Airspeed = 0
		ac.lg.Info("touchdown", slog.Any("location", s.Location))
	}

	if len(s.Breadcrumbs) == 0 || now.Since(s.LastCrumb) >= breadcrumbMs*time.Millisecond {
		s.Breadcrumbs = append(s.Breadcrumbs, s.Location)
		if len(s.Breadcrumbs) > breadcrumbs {
			s.Breadcrumbs = s.Breadcrumbs[1:]
		}
		s.LastCrumb = now
	}
}

// stepHover decelerates to a hover, translates to the landing target,
// and descends once overhead.
func (ac *Aircraft) stepHover(dt float32) {
	s := &ac.State
	s.Roll, s.Pitch = 0, 0
	s.Airspeed = max(0, s.Airspeed-hoverDecel*dt)

	if s.Airspeed > hoverSpeed {
		ac.move(s.Heading, s.Airspeed*dt)
		return
	}

	v := math.Sub2f(ac.toLocal(s.LandTarget), s.Local)
	if dist := math.Length2f(v); dist > landCapture {
		s.Heading = math.NormalizeHeading(math.Degrees(math.Atan2(v[0], v[1])))
		ac.move(s.Heading, min(dist, hoverSpeed*dt))
	} else {
		s.Location.Altitude -= descentRate * dt
	}
}
