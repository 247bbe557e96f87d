// nav/params.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmp/flightmode/util"
)

var ErrInvalidParams = errors.New("invalid parameters")

// AutolandPolicy selects whether RTL hands off to a landing sequence
// stored in the mission.
type AutolandPolicy int

const (
	AutolandNone AutolandPolicy = iota
	// AutolandOnReach looks for a landing sequence once the vehicle has
	// reached the return point at the expected altitude.
	AutolandOnReach
	// AutolandImmediate looks for one as soon as RTL is active.
	AutolandImmediate
)

func (p AutolandPolicy) String() string {
	switch p {
	case AutolandNone:
		return "none"
	case AutolandOnReach:
		return "on-reach"
	case AutolandImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("AutolandPolicy(%d)", int(p))
	}
}

// Params holds the vehicle configuration. Modes only read it.
type Params struct {
	// ClimbBeforeTurn holds the wings level until the vehicle is above
	// the return altitude.
	ClimbBeforeTurn bool `json:"climb_before_turn"`
	// RTLClimbMin is the climb in meters above the entry altitude required
	// before turning. Zero or negative disables the check.
	RTLClimbMin float32 `json:"rtl_climb_min"`
	// LevelRollLimit caps the roll in degrees during the climb.
	LevelRollLimit float32 `json:"level_roll_limit"`
	RollLimit      float32 `json:"roll_limit"`

	RTLAutoland AutolandPolicy `json:"rtl_autoland"`
	// RTLRadius is the signed loiter radius in meters at the return point;
	// negative loiters counter-clockwise and zero uses LoiterRadius.
	RTLRadius    float32 `json:"rtl_radius"`
	LoiterRadius float32 `json:"loiter_radius"`
	// RTLAltitude is meters above home; negative returns at the current
	// altitude.
	RTLAltitude float32     `json:"rtl_altitude"`
	RallyLimit  float32     `json:"rally_limit_km"`
	QRTLMode    QRTLHandoff `json:"q_rtl_mode"`

	AltitudeErrorTolerance float32 `json:"altitude_error_tolerance"`
	ModeChangeDebounceMs   int64   `json:"mode_change_debounce_ms"`
}

func DefaultParams() Params {
	return Params{
		RTLClimbMin:            0,
		LevelRollLimit:         5,
		RollLimit:              45,
		RTLAutoland:            AutolandNone,
		RTLRadius:              0,
		LoiterRadius:           60,
		RTLAltitude:            100,
		RallyLimit:             0.3,
		QRTLMode:               QRTLDisabled,
		AltitudeErrorTolerance: 10,
		ModeChangeDebounceMs:   1000,
	}
}

// ModeChangeDebounce is the interval after a mode change during which RTL
// does not consider handing off to another mode.
func (p *Params) ModeChangeDebounce() time.Duration {
	return time.Duration(p.ModeChangeDebounceMs) * time.Millisecond
}

func (p *Params) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("climb_before_turn", p.ClimbBeforeTurn),
		slog.Float64("rtl_climb_min", float64(p.RTLClimbMin)),
		slog.Float64("level_roll_limit", float64(p.LevelRollLimit)),
		slog.String("rtl_autoland", p.RTLAutoland.String()),
		slog.Float64("rtl_radius", float64(p.RTLRadius)),
		slog.Int("q_rtl_mode", int(p.QRTLMode)),
		slog.Int64("mode_change_debounce_ms", p.ModeChangeDebounceMs))
}

// LoadParams reads JSON-encoded parameters from r. Fields that are not
// present keep their defaults. Unknown keys and out-of-range values are
// reported in e; values that can be repaired are reset to their defaults
// with a warning.
func LoadParams(r io.Reader, e *util.ErrorLogger) (Params, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Params{}, fmt.Errorf("reading parameters: %w", err)
	}

	util.CheckJSON[Params](b, e)
	if e.HaveErrors() {
		return Params{}, ErrInvalidParams
	}

	p := DefaultParams()
	if err := util.UnmarshalJSONBytes(b, &p); err != nil {
		return Params{}, fmt.Errorf("parsing parameters: %w", err)
	}

	p.Validate(e)
	if e.HaveErrors() {
		return Params{}, ErrInvalidParams
	}
	return p, nil
}

// Validate checks p for out-of-range values.
func (p *Params) Validate(e *util.ErrorLogger) {
	def := DefaultParams()

	if p.LevelRollLimit <= 0 || p.LevelRollLimit >= 90 {
		e.Warning("level_roll_limit %.1f out of range (0, 90); using %.1f", p.LevelRollLimit, def.LevelRollLimit)
		p.LevelRollLimit = def.LevelRollLimit
	}
	if p.RollLimit <= 0 || p.RollLimit >= 90 {
		e.Warning("roll_limit %.1f out of range (0, 90); using %.1f", p.RollLimit, def.RollLimit)
		p.RollLimit = def.RollLimit
	}
	if p.LevelRollLimit > p.RollLimit {
		e.Warning("level_roll_limit %.1f exceeds roll_limit %.1f", p.LevelRollLimit, p.RollLimit)
	}
	if p.RTLAutoland < AutolandNone || p.RTLAutoland > AutolandImmediate {
		e.ErrorString("rtl_autoland %d: must be 0, 1, or 2", int(p.RTLAutoland))
	}
	if p.QRTLMode < QRTLDisabled || p.QRTLMode > QRTLAlways {
		e.ErrorString("q_rtl_mode %d: must be between 0 and 3", int(p.QRTLMode))
	}
	if p.RTLRadius < -32767 || p.RTLRadius > 32767 {
		e.ErrorString("rtl_radius %.0f out of range", p.RTLRadius)
	}
	if p.LoiterRadius == 0 {
		e.Warning("loiter_radius must be non-zero; using %.0f", def.LoiterRadius)
		p.LoiterRadius = def.LoiterRadius
	}
	if p.RallyLimit < 0 {
		e.ErrorString("rally_limit_km %.2f must be non-negative", p.RallyLimit)
	}
	if p.AltitudeErrorTolerance <= 0 {
		e.Warning("altitude_error_tolerance must be positive; using %.0f", def.AltitudeErrorTolerance)
		p.AltitudeErrorTolerance = def.AltitudeErrorTolerance
	}
	if p.ModeChangeDebounceMs < 0 {
		e.ErrorString("mode_change_debounce_ms %d must be non-negative", p.ModeChangeDebounceMs)
	}
}
