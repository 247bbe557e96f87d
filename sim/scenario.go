// sim/scenario.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/nav"
	"github.com/mmp/flightmode/util"
)

var ErrInvalidScenario = errors.New("invalid scenario")

const defaultAirspeed = 20 // m/s

// Scenario describes a simulated flight: where the aircraft starts,
// where home and the rally points are, its configuration and mission,
// and when RTL is commanded.
type Scenario struct {
	Name        string         `json:"name"`
	Home        av.Location    `json:"home"`
	RallyPoints []av.Location  `json:"rally_points,omitempty"`
	Start       av.Location    `json:"start"`
	Heading     float32        `json:"heading"`
	Aircraft    AircraftConfig `json:"aircraft"`
	Params      nav.Params     `json:"params"`
	Mission     []MissionItem  `json:"mission,omitempty"`

	// InitialMode is "manual" or "auto".
	InitialMode string `json:"initial_mode"`
	// RTLAtMs is when RTL is commanded; negative never commands it.
	RTLAtMs    int64 `json:"rtl_at_ms"`
	TickMs     int64 `json:"tick_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// LoadScenario reads a JSON scenario from r. Problems are reported to e.
func LoadScenario(r io.Reader, e *util.ErrorLogger) (*Scenario, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	util.CheckJSON[Scenario](b, e)
	if e.HaveErrors() {
		return nil, ErrInvalidScenario
	}

	sc := &Scenario{
		Params:      nav.DefaultParams(),
		InitialMode: "manual",
		TickMs:      100,
		DurationMs:  10 * 60 * 1000,
	}
	if err := util.UnmarshalJSONBytes(b, sc); err != nil {
		e.Error(err)
		return nil, ErrInvalidScenario
	}

	sc.Validate(e)
	if e.HaveErrors() {
		return nil, ErrInvalidScenario
	}
	return sc, nil
}

func (sc *Scenario) Validate(e *util.ErrorLogger) {
	if sc.Name == "" {
		e.ErrorString("\"name\" must be specified")
	} else {
		e.Push(sc.Name)
		defer e.Pop()
	}

	if sc.Home.IsZero() {
		e.ErrorString("\"home\" must be specified")
	}
	if sc.Start.IsZero() {
		e.ErrorString("\"start\" must be specified")
	}
	for i, rp := range sc.RallyPoints {
		if rp.IsZero() {
			e.ErrorString("rally point %d: location must be specified", i)
		}
	}
	if sc.Aircraft.Airspeed <= 0 {
		e.Warning("airspeed not specified; using %d m/s", defaultAirspeed)
		sc.Aircraft.Airspeed = defaultAirspeed
	}

	switch strings.ToLower(sc.InitialMode) {
	case "manual":
	case "auto":
		if len(sc.Mission) == 0 {
			e.ErrorString("initial mode \"auto\" requires a mission")
		}
	default:
		e.ErrorString("%q: unknown initial mode", sc.InitialMode)
	}
	if sc.TickMs <= 0 {
		e.ErrorString("tick_ms %d must be positive", sc.TickMs)
	}
	if sc.DurationMs <= 0 {
		e.ErrorString("duration_ms %d must be positive", sc.DurationMs)
	}

	e.Push("mission")
	for i, item := range sc.Mission {
		if item.Location.IsZero() {
			e.ErrorString("item %d: location must be specified", i)
		}
		if item.Land && i != len(sc.Mission)-1 {
			e.ErrorString("item %d: landing must be the last mission item", i)
		}
		if item.Land && item.LandingStart {
			e.ErrorString("item %d: cannot both start a landing sequence and land", i)
		}
	}
	e.Pop()

	e.Push("params")
	sc.Params.Validate(e)
	e.Pop()
}

func (sc *Scenario) initialMode() nav.Number {
	if strings.ToLower(sc.InitialMode) == "auto" {
		return nav.Auto
	}
	return nav.Manual
}

// TraceHeader returns the header for a trace of the scenario's run; each
// call gets a fresh run identifier.
func (sc *Scenario) TraceHeader() TraceHeader {
	return TraceHeader{
		RunID:    uuid.NewString(),
		Scenario: sc.Name,
		Params:   sc.Params,
		Home:     sc.Home,
		TickMs:   sc.TickMs,
	}
}

// Base implements nav.BaseProvider.
type Base struct {
	HomeLocation av.Location
	Rally        []av.Location
}

func (b *Base) Home() av.Location          { return b.HomeLocation }
func (b *Base) RallyPoints() []av.Location { return b.Rally }

// Result summarizes a scenario run.
type Result struct {
	Name      string
	Changes   []nav.ModeChange
	FinalMode nav.Number
	Final     AircraftState
	// LastRTL is the RTL activation state from the last tick RTL was
	// active.
	LastRTL        nav.RTLState
	Elapsed        nav.Millis
	Landed         bool
	LandingLookups int
}

func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", r.Name),
		slog.String("final_mode", r.FinalMode.String()),
		slog.Bool("landed", r.Landed),
		slog.Uint64("elapsed_ms", uint64(r.Elapsed)),
		slog.Int("mode_changes", len(r.Changes)),
		slog.Int("landing_lookups", r.LandingLookups))
}

// RunOptions holds the optional outputs of Run.
type RunOptions struct {
	Events *EventStream
	Trace  *TraceWriter
}

// Run flies the scenario until the aircraft is on the ground, the
// scenario's duration has elapsed, or ctx is canceled.
func (sc *Scenario) Run(ctx context.Context, opts RunOptions, lg *log.Logger) (*Result, error) {
	lg = lg.With(slog.String("scenario", sc.Name))

	params := sc.Params
	ac := NewAircraft(sc.Aircraft, sc.Start, sc.Heading, sc.Home, &params, lg)
	mission := NewMission(sc.Mission, ac, lg)

	v := &nav.Vehicle{
		Params:   &params,
		Position: ac,
		Nav:      ac,
		Mission:  mission,
		Base:     &Base{HomeLocation: sc.Home, Rally: sc.RallyPoints},
		Pilot:    nav.AttitudeTargets{Throttle: 50},
		Log:      lg,
	}
	if sc.Aircraft.VTOL {
		v.VTOL = ac
	}

	var sink nav.ModeChangeSink
	if opts.Events != nil {
		sink = opts.Events.ModeChangeSink(sc.Name, ac)
	}

	ap, err := nav.NewAutopilot(v, sc.initialMode(), sink, nav.DefaultModes()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sc.Name, err)
	}

	res := &Result{Name: sc.Name}
	dt := float32(sc.TickMs) / 1000
	rtlCommanded := sc.RTLAtMs < 0
	climbReported := false

	var now nav.Millis
	for ; int64(now) <= sc.DurationMs; now += nav.Millis(sc.TickMs) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", sc.Name, err)
		}

		v.Now = now
		if !rtlCommanded && int64(now) >= sc.RTLAtMs {
			rtlCommanded = true
			if err := ap.SetMode(nav.RTL, nav.ReasonGCSCommand); err != nil {
				lg.Warn("RTL command failed", slog.Any("error", err))
			}
		}

		ap.Tick(now)
		ac.Step(now, dt, v.Targets)

		rec := TraceRecord{
			Time:     now,
			Mode:     ap.Mode(),
			Location: ac.State.Location,
			Heading:  ac.State.Heading,
			Targets:  v.Targets,
		}
		if rtl, ok := ap.Current().(*nav.RTLMode); ok && rtl.Active() {
			st := rtl.State()
			rec.RTL = &st
			res.LastRTL = st

			if st.ClimbCompleted && !climbReported && opts.Events != nil {
				opts.Events.Post(Event{Type: ClimbCompleteEvent, Scenario: sc.Name, Time: now,
					Location: ac.State.Location, Message: "climb complete"})
			}
			climbReported = climbReported || st.ClimbCompleted
		}
		if opts.Trace != nil {
			if err := opts.Trace.Write(rec); err != nil {
				return nil, err
			}
		}

		if ac.State.OnGround {
			res.Landed = true
			if opts.Events != nil {
				opts.Events.Post(Event{Type: TouchdownEvent, Scenario: sc.Name, Time: now,
					Location: ac.State.Location, Message: "touchdown " +
						fmt.Sprintf("%.0fm from home", ac.State.Location.Distance(sc.Home))})
			}
			break
		}
	}

	res.Changes = ap.History()
	res.FinalMode = ap.Mode()
	res.Final = ac.Snapshot()
	res.Elapsed = min(now, nav.Millis(sc.DurationMs))
	res.LandingLookups = mission.Lookups

	lg.Info("scenario complete", slog.Any("result", res))
	return res, nil
}
