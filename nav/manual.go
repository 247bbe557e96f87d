// nav/manual.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

// ManualMode passes the pilot's inputs straight through.
type ManualMode struct{}

func (ManualMode) Number() Number                       { return Manual }
func (ManualMode) Enter(v *Vehicle) (bool, *Transition) { return true, nil }
func (ManualMode) Navigate(v *Vehicle) *Transition      { return nil }

func (ManualMode) Update(v *Vehicle) {
	limit := v.Targets.RollLimit
	v.Targets = v.Pilot
	v.Targets.RollLimit = limit
}
