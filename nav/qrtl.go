// nav/qrtl.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"log/slog"

	av "github.com/mmp/flightmode/aviation"
)

// QRTLMode flies to the return point and lands vertically.
type QRTLMode struct {
	target av.Location
}

func (m *QRTLMode) Number() Number { return QRTL }

func (m *QRTLMode) Enter(v *Vehicle) (bool, *Transition) {
	if !v.vtolAvailable() {
		v.Log.Warn("QRTL: VTOL not available")
		return false, nil
	}
	m.target = v.returnPoint()
	v.Log.Info("QRTL entered", slog.Any("target", m.target))
	return true, nil
}

func (m *QRTLMode) Update(v *Vehicle) {
	v.Nav.CalcAttitude(&v.Targets)
}

func (m *QRTLMode) Navigate(v *Vehicle) *Transition {
	v.VTOL.Land(m.target)
	return nil
}
