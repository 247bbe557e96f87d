// nav/autopilot_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"
	"testing"
	"time"

	av "github.com/mmp/flightmode/aviation"
)

func newTestAutopilot(t *testing.T, r *testRig, sink ModeChangeSink) *Autopilot {
	t.Helper()
	ap, err := NewAutopilot(r.v, Manual, sink, DefaultModes()...)
	if err != nil {
		t.Fatalf("NewAutopilot: %v", err)
	}
	return ap
}

func modeSequence(h []ModeChange) []Number {
	var s []Number
	for _, mc := range h {
		s = append(s, mc.To)
	}
	return s
}

func equalNumbers(a, b []Number) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAutopilotInitialMode(t *testing.T) {
	r := newTestRig(DefaultParams())
	sink := &recordingSink{}
	ap := newTestAutopilot(t, r, sink)

	if ap.Mode() != Manual {
		t.Errorf("Expected MANUAL, got %s", ap.Mode())
	}
	if len(sink.changes) != 1 || sink.changes[0].Reason != ReasonInitialized {
		t.Errorf("Expected one initialization change, got %+v", sink.changes)
	}

	r.v.Pilot = AttitudeTargets{NavRoll: -12, NavPitch: 3, Throttle: 55}
	ap.Tick(20)
	want := AttitudeTargets{NavRoll: -12, NavPitch: 3, Throttle: 55, RollLimit: 45}
	if r.v.Targets != want {
		t.Errorf("Expected pilot inputs %+v, got %+v", want, r.v.Targets)
	}
}

func TestAutopilotRegistration(t *testing.T) {
	r := newTestRig(DefaultParams())
	if _, err := NewAutopilot(r.v, Manual, nil, ManualMode{}, ManualMode{}); !errors.Is(err, ErrDuplicateMode) {
		t.Errorf("Expected ErrDuplicateMode, got %v", err)
	}
	if _, err := NewAutopilot(r.v, RTL, nil, ManualMode{}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}

func TestAutopilotRefusedEntry(t *testing.T) {
	r := newTestRig(DefaultParams())
	r.v.VTOL = nil
	r.v.Mission = nil
	ap := newTestAutopilot(t, r, nil)
	r.v.Now = 5000

	for _, num := range []Number{QRTL, Auto} {
		if err := ap.SetMode(num, ReasonGCSCommand); !errors.Is(err, ErrModeRefused) {
			t.Errorf("%s: Expected ErrModeRefused, got %v", num, err)
		}
		if ap.Mode() != Manual {
			t.Errorf("%s: Expected to remain in MANUAL, got %s", num, ap.Mode())
		}
	}
	if r.v.LastModeChange != 0 {
		t.Errorf("Expected last mode change time unchanged, got %d", r.v.LastModeChange)
	}
	if len(ap.History()) != 1 {
		t.Errorf("Expected only the initial mode change, got %+v", ap.History())
	}
}

func TestAutopilotSameModeIsNoop(t *testing.T) {
	r := newTestRig(DefaultParams())
	ap := newTestAutopilot(t, r, nil)

	r.v.Now = 100
	if err := ap.SetMode(RTL, ReasonGCSCommand); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	r.v.Now = 2000
	if err := ap.SetMode(RTL, ReasonGCSCommand); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if r.v.LastModeChange != 100 {
		t.Errorf("Expected last mode change at 100, got %d", r.v.LastModeChange)
	}
	if len(r.nav.glideSlopes) != 1 {
		t.Errorf("Expected RTL entered once, got %d glide slope setups", len(r.nav.glideSlopes))
	}
}

func TestAutopilotRTLEntryChainsToQRTL(t *testing.T) {
	p := DefaultParams()
	p.QRTLMode = QRTLEnabled
	r := newTestRig(p)
	r.nav.loc = testHome.Offset(45, 30)
	sink := &recordingSink{}
	ap := newTestAutopilot(t, r, sink)

	if err := ap.SetMode(RTL, ReasonRadioFailsafe); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if ap.Mode() != QRTL {
		t.Errorf("Expected QRTL, got %s", ap.Mode())
	}
	if seq := modeSequence(sink.changes); !equalNumbers(seq, []Number{Manual, RTL, QRTL}) {
		t.Errorf("Expected MANUAL, RTL, QRTL, got %v", seq)
	}
	last := sink.changes[len(sink.changes)-1]
	if last.From != RTL || last.Reason != ReasonRTLCompleteVTOLLand {
		t.Errorf("Expected RTL -> QRTL for VTOL land, got %+v", last)
	}

	ap.Tick(50)
	if len(r.vtol.lands) != 1 || r.vtol.lands[0] != testHome.WithAltitude(testHome.Altitude+100) {
		t.Errorf("Expected VTOL landing at home, got %v", r.vtol.lands)
	}
}

func TestAutopilotTickAppliesTransition(t *testing.T) {
	p := DefaultParams()
	p.QRTLMode = QRTLEnabled
	p.RTLClimbMin = 50
	r := newTestRig(p)
	sink := &recordingSink{}
	ap := newTestAutopilot(t, r, sink)

	r.v.Now = 10000
	if err := ap.SetMode(RTL, ReasonGCSCommand); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	rtl, ok := ap.Current().(*RTLMode)
	if !ok {
		t.Fatalf("Expected RTL to stay active 3km out, got %s", ap.Mode())
	}
	r.nav.reached = true

	ap.Tick(10500)
	if ap.Mode() != RTL {
		t.Fatalf("Expected RTL during debounce, got %s", ap.Mode())
	}
	if r.v.Targets.RollLimit != p.LevelRollLimit {
		t.Errorf("Expected roll limit %.0f while climbing, got %.1f", p.LevelRollLimit, r.v.Targets.RollLimit)
	}

	ap.Tick(11000)
	if ap.Mode() != QRTL {
		t.Fatalf("Expected QRTL after debounce, got %s", ap.Mode())
	}
	if r.v.LastModeChange != 11000 {
		t.Errorf("Expected last mode change at 11000, got %d", r.v.LastModeChange)
	}
	if rtl.Active() || rtl.State() != (RTLState{}) {
		t.Errorf("Expected RTL activation state discarded, got %+v", rtl.State())
	}

	// The roll limit is reset each tick.
	ap.Tick(11020)
	if r.v.Targets.RollLimit != p.RollLimit {
		t.Errorf("Expected roll limit %.0f, got %.1f", p.RollLimit, r.v.Targets.RollLimit)
	}

	if seq := modeSequence(ap.History()); !equalNumbers(seq, []Number{Manual, RTL, QRTL}) {
		t.Errorf("Expected MANUAL, RTL, QRTL, got %v", seq)
	}
	if len(sink.changes) != 3 {
		t.Errorf("Expected 3 posted changes, got %d", len(sink.changes))
	}
}

func TestAutopilotAutoland(t *testing.T) {
	p := DefaultParams()
	p.RTLAutoland = AutolandImmediate
	r := newTestRig(p)
	land := testHome.Offset(270, 1000).WithAltitude(testHome.Altitude + 80)
	r.mission.hasLanding = true
	r.mission.legs = []Leg{{Prev: r.nav.loc, Next: land}, {Prev: land, Next: testHome, Land: true}}
	ap := newTestAutopilot(t, r, nil)

	if err := ap.SetMode(RTL, ReasonBatteryFailsafe); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	ap.Tick(1000)
	if ap.Mode() != Auto {
		t.Fatalf("Expected AUTO, got %s", ap.Mode())
	}
	if r.mission.starts != 1 || !r.mission.forceResume {
		t.Errorf("Expected mission resumed, got %d starts force resume %v", r.mission.starts, r.mission.forceResume)
	}

	ap.Tick(1100)
	if len(r.nav.waypoints) != 1 || r.nav.waypoints[0] != [2]av.Location{r.mission.legs[0].Prev, land} {
		t.Errorf("Expected first leg flown, got %v", r.nav.waypoints)
	}

	// Arrive at the landing point; the mission completes with a landing.
	r.nav.loc = testHome
	r.mission.cursor = 2
	ap.Tick(1200)
	if ap.Mode() != Auto {
		t.Errorf("Expected to remain in AUTO after landing, got %s", ap.Mode())
	}
}

func TestAutopilotMissionEndReturns(t *testing.T) {
	r := newTestRig(DefaultParams())
	wp := testHome.Offset(0, 4000)
	r.mission.legs = []Leg{{Prev: r.nav.loc, Next: wp}}
	ap := newTestAutopilot(t, r, nil)

	if err := ap.SetMode(Auto, ReasonGCSCommand); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	r.nav.loc = wp
	ap.Tick(100) // reaches the waypoint
	ap.Tick(200) // mission complete
	if ap.Mode() != RTL {
		t.Errorf("Expected RTL at mission end, got %s", ap.Mode())
	}
	h := ap.History()
	if h[len(h)-1].Reason != ReasonMissionEnd {
		t.Errorf("Expected mission end reason, got %s", h[len(h)-1].Reason)
	}
}

func TestMillisSince(t *testing.T) {
	for _, tc := range []struct {
		now, prev Millis
		d         time.Duration
	}{
		{now: 1500, prev: 500, d: time.Second},
		{now: 0, prev: 0, d: 0},
		{now: 5, prev: ^Millis(0) - 4, d: 10 * time.Millisecond},
	} {
		if d := tc.now.Since(tc.prev); d != tc.d {
			t.Errorf("%d since %d: Expected %s, got %s", tc.now, tc.prev, tc.d, d)
		}
	}
}

func TestDefaultModes(t *testing.T) {
	seen := make(map[Number]bool)
	for _, m := range DefaultModes() {
		seen[m.Number()] = true
	}
	for _, n := range []Number{Manual, Auto, RTL, QRTL} {
		if !seen[n] {
			t.Errorf("Expected %s among the default modes", n)
		}
	}

	var q Mode = &QRTLMode{}
	if q.Number() != QRTL {
		t.Errorf("Expected QRTL, got %s", q.Number())
	}
	var h QRTLHandoff = QRTLEnabled
	if v := (&fakeVTOL{available: true, mode: h}); v.RTLMode() != QRTLEnabled {
		t.Errorf("Expected hand-off mode %d, got %d", QRTLEnabled, v.RTLMode())
	}
}

func TestReasonString(t *testing.T) {
	for _, tc := range []struct {
		r    Reason
		want string
	}{
		{ReasonGCSCommand, "GCS command"},
		{ReasonRTLCompleteVTOLLand, "RTL complete, switching to VTOL land"},
		{ReasonInitialized, "initialized"},
		{Reason(99), "Reason(99)"},
		{Reason(-1), "Reason(-1)"},
	} {
		if s := tc.r.String(); s != tc.want {
			t.Errorf("Expected %q, got %q", tc.want, s)
		}
	}
}
