// nav/autopilot.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmp/flightmode/util"
)

var (
	ErrUnknownMode   = errors.New("unknown mode")
	ErrDuplicateMode = errors.New("mode registered twice")
	ErrModeRefused   = errors.New("mode refused entry")
)

// maxTransitionChain bounds the number of mode changes that may follow
// from a single request via transitions returned by Enter.
const maxTransitionChain = 4

const modeChangeHistoryLength = 16

// ModeChange records a completed mode change.
type ModeChange struct {
	From   Number `msgpack:"f"`
	To     Number `msgpack:"t"`
	Reason Reason `msgpack:"r"`
	Time   Millis `msgpack:"ms"`
}

func (mc ModeChange) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("from", mc.From.String()),
		slog.String("to", mc.To.String()),
		slog.String("reason", mc.Reason.String()),
		slog.Uint64("time_ms", uint64(mc.Time)))
}

// ModeChangeSink is notified of every mode change.
type ModeChangeSink interface {
	PostModeChange(ModeChange)
}

// Autopilot owns the flight modes and runs the current one each tick.
type Autopilot struct {
	vehicle *Vehicle
	modes   map[Number]Mode
	current Mode
	history *util.RingBuffer[ModeChange]
	sink    ModeChangeSink
}

// NewAutopilot registers the given modes and enters the initial one.
func NewAutopilot(v *Vehicle, initial Number, sink ModeChangeSink, modes ...Mode) (*Autopilot, error) {
	ap := &Autopilot{
		vehicle: v,
		modes:   make(map[Number]Mode),
		history: util.NewRingBuffer[ModeChange](modeChangeHistoryLength),
		sink:    sink,
	}
	for _, m := range modes {
		if _, ok := ap.modes[m.Number()]; ok {
			return nil, fmt.Errorf("%s: %w", m.Number(), ErrDuplicateMode)
		}
		ap.modes[m.Number()] = m
	}

	if err := ap.SetMode(initial, ReasonInitialized); err != nil {
		return nil, err
	}
	return ap, nil
}

// DefaultModes returns one instance of each mode in this package.
func DefaultModes() []Mode {
	return []Mode{ManualMode{}, &RTLMode{}, &QRTLMode{}, &AutoMode{}}
}

func (ap *Autopilot) Vehicle() *Vehicle { return ap.vehicle }

func (ap *Autopilot) Mode() Number {
	if ap.current == nil {
		return Manual
	}
	return ap.current.Number()
}

// Current returns the active mode, or nil before the first successful
// SetMode.
func (ap *Autopilot) Current() Mode { return ap.current }

// History returns the most recent mode changes, oldest first.
func (ap *Autopilot) History() []ModeChange {
	return ap.history.Slice()
}

// SetMode switches to the given mode. If the new mode refuses entry, the
// current mode remains active and an error is returned. Selecting the
// active mode is a no-op.
func (ap *Autopilot) SetMode(num Number, reason Reason) error {
	for range maxTransitionChain {
		if ap.current != nil && ap.current.Number() == num {
			return nil
		}

		next, err := ap.enter(num, reason)
		if err != nil || next == nil {
			return err
		}
		num, reason = next.To, next.Reason
	}

	ap.vehicle.Log.Warn("mode transition chain too long", slog.String("next", num.String()))
	return nil
}

func (ap *Autopilot) enter(num Number, reason Reason) (*Transition, error) {
	v := ap.vehicle
	m, ok := ap.modes[num]
	if !ok {
		v.Log.Warn("unknown mode requested", slog.Int("mode", int(num)))
		return nil, fmt.Errorf("%s: %w", num, ErrUnknownMode)
	}

	// Enter may request a further change; the time of this one must be
	// visible to it.
	prevChange := v.LastModeChange
	v.LastModeChange = v.Now

	entered, next := m.Enter(v)
	if !entered {
		v.LastModeChange = prevChange
		v.Log.Warn("mode refused entry", slog.String("mode", num.String()),
			slog.String("reason", reason.String()))
		return nil, fmt.Errorf("%s: %w", num, ErrModeRefused)
	}

	from := ap.Mode()
	if ex, ok := ap.current.(Exiter); ok {
		ex.Exit(v)
	}
	ap.current = m

	mc := ModeChange{From: from, To: num, Reason: reason, Time: v.Now}
	ap.history.Add(mc)
	if ap.sink != nil {
		ap.sink.PostModeChange(mc)
	}
	v.Log.Info("mode change", slog.Any("change", mc))

	return next, nil
}

// Tick runs one cycle of the current mode at time now.
func (ap *Autopilot) Tick(now Millis) {
	v := ap.vehicle
	v.Now = now
	v.Targets.RollLimit = v.Params.RollLimit

	ap.current.Update(v)
	if t := ap.current.Navigate(v); t != nil {
		if err := ap.SetMode(t.To, t.Reason); err != nil {
			v.Log.Warn("requested mode change failed", slog.Any("transition", t), slog.Any("error", err))
		}
	}
}
