// sim/scenario_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/math"
	"github.com/mmp/flightmode/nav"
	"github.com/mmp/flightmode/util"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "scenarios", name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var e util.ErrorLogger
	sc, err := LoadScenario(f, &e)
	if err != nil {
		t.Fatalf("%s: %v: %s", name, err, e.String())
	}
	return sc
}

func TestLoadScenarioFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "scenarios", "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatalf("Expected scenario files")
	}
	for _, fn := range files {
		loadTestScenario(t, filepath.Base(fn))
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	for _, tc := range []struct {
		json   string
		expect string
	}{
		{json: `{"name": "x", "hme": {}}`, expect: `"hme"`},
		{json: `{"name": "x", "start": {"position": "-35, 149"}}`, expect: `"home" must be specified`},
		{json: `{"name": "x", "home": {"position": "-35, 149"}, "start": {"position": "-35, 149.1"}, "initial_mode": "auto"}`,
			expect: "requires a mission"},
		{json: `{"name": "x", "home": {"position": "-35, 149"}, "start": {"position": "-35, 149.1"}, "params": {"rtl_autoland": 7}}`,
			expect: "x / params: rtl_autoland 7"},
		{json: `{"name": "x", "home": {"position": "-35, 149"}, "start": {"position": "-35, 149.1"},
		  "mission": [{"location": {"position": "-35, 149.2"}, "land": true}, {"location": {"position": "-35, 149.3"}}]}`,
			expect: "x / mission: item 0: landing must be the last mission item"},
		{json: `{"name": "x", "home": {"position": "-35, 149"}, "start": {"position": "-35, 149.1"}, "tick_ms": 0}`,
			expect: "tick_ms 0"},
	} {
		var e util.ErrorLogger
		_, err := LoadScenario(strings.NewReader(tc.json), &e)
		if !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("%s: Expected ErrInvalidScenario, got %v", tc.json, err)
		}
		if !strings.Contains(e.String(), tc.expect) {
			t.Errorf("%s: Expected error containing %q, got %q", tc.json, tc.expect, e.String())
		}
	}
}

func TestLoadScenarioDefaults(t *testing.T) {
	var e util.ErrorLogger
	sc, err := LoadScenario(strings.NewReader(`{"name": "x", "home": {"position": "-35, 149"},
"start": {"position": "-35, 149.1", "altitude": 100}, "params": {"rtl_radius": 90}}`), &e)
	if err != nil {
		t.Fatalf("LoadScenario: %v %s", err, e.String())
	}
	want := nav.DefaultParams()
	want.RTLRadius = 90
	if sc.Params != want {
		t.Errorf("Expected params %+v, got %+v", want, sc.Params)
	}
	if sc.Aircraft.Airspeed != defaultAirspeed || len(e.Warnings()) != 1 {
		t.Errorf("Expected default airspeed with a warning, got %.0f %v", sc.Aircraft.Airspeed, e.Warnings())
	}
	if sc.initialMode() != nav.Manual || sc.TickMs != 100 {
		t.Errorf("Unexpected defaults %+v", sc)
	}
}

func modeChangesTo(changes []nav.ModeChange) []nav.Number {
	var s []nav.Number
	for _, mc := range changes {
		s = append(s, mc.To)
	}
	return s
}

func TestRunQuadplaneReturn(t *testing.T) {
	sc := loadTestScenario(t, "quadplane_qrtl.json")

	es := NewEventStream(nil)
	defer es.Destroy()
	sub := es.Subscribe()

	var buf bytes.Buffer
	tw, err := NewTraceWriter(&buf, sc.TraceHeader())
	if err != nil {
		t.Fatal(err)
	}

	res, err := sc.Run(context.Background(), RunOptions{Events: es, Trace: tw}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	seq := modeChangesTo(res.Changes)
	if len(seq) != 3 || seq[0] != nav.Manual || seq[1] != nav.RTL || seq[2] != nav.QRTL {
		t.Fatalf("Expected MANUAL, RTL, QRTL, got %v", seq)
	}
	if r := res.Changes[2].Reason; r != nav.ReasonRTLCompleteVTOLLand {
		t.Errorf("Expected VTOL land reason, got %s", r)
	}
	if !res.Landed {
		t.Fatalf("Expected to have landed")
	}
	if d := res.Final.Location.Distance(sc.Home); d > 5 {
		t.Errorf("Expected to land at home, got %.1fm away", d)
	}
	if !res.LastRTL.ClimbCompleted {
		t.Errorf("Expected the climb to have completed before the hand-off")
	}

	tr, err := ReadTrace(&buf)
	if err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if tr.Header.RunID == "" || tr.Header.Scenario != sc.Name {
		t.Errorf("Expected header with run id for %q, got %+v", sc.Name, tr.Header)
	}
	climbing := 0
	for _, rec := range tr.Records {
		if rec.RTL == nil || rec.RTL.ClimbCompleted {
			continue
		}
		climbing++
		if math.Abs(rec.Targets.NavRoll) > sc.Params.LevelRollLimit {
			t.Errorf("t=%d: Expected |roll| <= %.0f while climbing, got %.1f", rec.Time,
				sc.Params.LevelRollLimit, rec.Targets.NavRoll)
		}
	}
	if climbing == 0 {
		t.Errorf("Expected some ticks climbing before the turn")
	}

	var types []EventType
	for _, ev := range sub.Get() {
		types = append(types, ev.Type)
	}
	want := []EventType{ModeChangeEvent, ModeChangeEvent, ClimbCompleteEvent, ModeChangeEvent, TouchdownEvent}
	if len(types) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Expected events %v, got %v", want, types)
			break
		}
	}
}

func TestRunFixedWingAutoland(t *testing.T) {
	sc := loadTestScenario(t, "fixedwing_autoland.json")

	res, err := sc.Run(context.Background(), RunOptions{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	seq := modeChangesTo(res.Changes)
	if len(seq) != 3 || seq[1] != nav.RTL || seq[2] != nav.Auto {
		t.Fatalf("Expected MANUAL, RTL, AUTO, got %v", seq)
	}
	if r := res.Changes[2].Reason; r != nav.ReasonRTLCompleteAutoland {
		t.Errorf("Expected autoland reason, got %s", r)
	}
	if res.LandingLookups != 1 {
		t.Errorf("Expected exactly one landing sequence lookup, got %d", res.LandingLookups)
	}
	if !res.Landed {
		t.Errorf("Expected to have landed")
	}
	if d := res.Final.Location.Distance(sc.Home); d > 1500 {
		t.Errorf("Expected to land near home, got %.0fm away", d)
	}
}

func TestRunRallyClimbBeforeTurn(t *testing.T) {
	sc := loadTestScenario(t, "rally_climb_before_turn.json")

	res, err := sc.Run(context.Background(), RunOptions{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rally := sc.RallyPoints[0]
	if res.LastRTL.Target != rally {
		t.Errorf("Expected return to rally point %s, got %s", rally, res.LastRTL.Target)
	}
	if !res.LastRTL.ClimbCompleted {
		t.Errorf("Expected climb completed")
	}
	if res.LastRTL.Reference.Altitude <= rally.Altitude {
		t.Errorf("Expected leg restarted above %.0f, got %.1f", rally.Altitude, res.LastRTL.Reference.Altitude)
	}
	if res.Changes[1].Time != 5000 {
		t.Errorf("Expected RTL commanded at 5000ms, got %d", res.Changes[1].Time)
	}
	if res.FinalMode != nav.QRTL || !res.Landed {
		t.Errorf("Expected QRTL landing, got %s landed %v", res.FinalMode, res.Landed)
	}
	if d := res.Final.Location.Distance(rally); d > 5 {
		t.Errorf("Expected to land at the rally point, got %.1fm away", d)
	}
}

func TestRunCanceled(t *testing.T) {
	sc := loadTestScenario(t, "quadplane_qrtl.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sc.Run(ctx, RunOptions{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunTagsLogsWithScenario(t *testing.T) {
	sc := loadTestScenario(t, "quadplane_qrtl.json")

	var buf bytes.Buffer
	lg := &log.Logger{Logger: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))}
	if _, err := sc.Run(context.Background(), RunOptions{}, lg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tag := `"scenario":"` + sc.Name + `"`
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("Expected several log records, got %q", buf.String())
	}
	for _, line := range lines {
		if n := strings.Count(line, tag); n != 1 {
			t.Errorf("Expected scenario attribute once, got %d: %s", n, line)
		}
	}
}
