// nav/fakes_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"testing"

	av "github.com/mmp/flightmode/aviation"
)

var testHome = av.MakeLocation(-35.363261, 149.165230, 584)

type loiterCall struct {
	center    av.Location
	radius    float32
	direction int
}

// fakeNav implements PositionSource and Navigator with directly settable
// state.
type fakeNav struct {
	loc      av.Location
	altErr   float32
	reached  bool
	navRoll  float32
	navPitch float32

	glideSlopes [][2]av.Location
	loiters     []loiterCall
	waypoints   [][2]av.Location
}

func (f *fakeNav) Location() av.Location  { return f.loc }
func (f *fakeNav) AltitudeError() float32 { return f.altErr }

func (f *fakeNav) CalcAttitude(t *AttitudeTargets) {
	t.NavRoll = f.navRoll
	t.NavPitch = f.navPitch
	t.Throttle = 60
}

func (f *fakeNav) SetupGlideSlope(prev, next av.Location) {
	f.glideSlopes = append(f.glideSlopes, [2]av.Location{prev, next})
}

func (f *fakeNav) UpdateWaypoint(prev, next av.Location) {
	f.waypoints = append(f.waypoints, [2]av.Location{prev, next})
}

func (f *fakeNav) UpdateLoiter(center av.Location, radius float32, direction int) {
	f.loiters = append(f.loiters, loiterCall{center: center, radius: radius, direction: direction})
}

func (f *fakeNav) ReachedLoiterTarget() bool { return f.reached }

func (f *fakeNav) lastLoiter() loiterCall {
	if len(f.loiters) == 0 {
		return loiterCall{}
	}
	return f.loiters[len(f.loiters)-1]
}

type fakeVTOL struct {
	available bool
	mode      QRTLHandoff
	stopping  float32
	lands     []av.Location
}

func (f *fakeVTOL) Available() bool           { return f.available }
func (f *fakeVTOL) RTLMode() QRTLHandoff      { return f.mode }
func (f *fakeVTOL) StoppingDistance() float32 { return f.stopping }
func (f *fakeVTOL) Land(target av.Location)   { f.lands = append(f.lands, target) }

type fakeMission struct {
	hasLanding  bool
	lookups     int
	forceResume bool
	starts      int
	legs        []Leg
	cursor      int
}

func (f *fakeMission) JumpToLandingSequence() bool {
	f.lookups++
	return f.hasLanding
}

func (f *fakeMission) SetForceResume(b bool) { f.forceResume = b }

func (f *fakeMission) Start() bool {
	f.starts++
	return len(f.legs) > 0
}

func (f *fakeMission) Advance(cur av.Location) (Leg, bool) {
	if f.cursor >= len(f.legs) {
		if len(f.legs) == 0 {
			return Leg{}, true
		}
		return f.legs[len(f.legs)-1], true
	}
	leg := f.legs[f.cursor]
	if cur.Distance(leg.Next) < 50 {
		f.cursor++
	}
	return leg, false
}

type fakeBase struct {
	home    av.Location
	rallies []av.Location
}

func (f *fakeBase) Home() av.Location          { return f.home }
func (f *fakeBase) RallyPoints() []av.Location { return f.rallies }

type testRig struct {
	v       *Vehicle
	nav     *fakeNav
	vtol    *fakeVTOL
	mission *fakeMission
}

// newTestRig returns a vehicle 3km north of home, 50m above it, rolling
// 30 degrees.
func newTestRig(p Params) *testRig {
	r := &testRig{
		nav: &fakeNav{
			loc:     testHome.Offset(0, 3000).WithAltitude(testHome.Altitude + 50),
			navRoll: 30,
		},
		vtol:    &fakeVTOL{available: true, mode: p.QRTLMode},
		mission: &fakeMission{},
	}
	r.v = &Vehicle{
		Params:   &p,
		Position: r.nav,
		Nav:      r.nav,
		Mission:  r.mission,
		VTOL:     r.vtol,
		Base:     &fakeBase{home: testHome},
	}
	return r
}

// tick runs one cycle of m the way the Autopilot does.
func (r *testRig) tick(m Mode, now Millis) *Transition {
	r.v.Now = now
	r.v.Targets.RollLimit = r.v.Params.RollLimit
	m.Update(r.v)
	return m.Navigate(r.v)
}

func (r *testRig) enterRTL(t *testing.T) *RTLMode {
	t.Helper()
	m := &RTLMode{}
	ok, next := m.Enter(r.v)
	if !ok {
		t.Fatalf("RTL refused entry")
	}
	if next != nil {
		t.Fatalf("Expected no transition on RTL entry, got %+v", next)
	}
	return m
}

type recordingSink struct {
	changes []ModeChange
}

func (s *recordingSink) PostModeChange(mc ModeChange) {
	s.changes = append(s.changes, mc)
}
