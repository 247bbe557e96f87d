// sim/mission_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"testing"

	av "github.com/mmp/flightmode/aviation"
)

type fixedPosition struct {
	loc av.Location
}

func (f *fixedPosition) Location() av.Location  { return f.loc }
func (f *fixedPosition) AltitudeError() float32 { return 0 }

func testMissionItems() []MissionItem {
	return []MissionItem{
		{Location: testHome.Offset(0, 2000).WithAltitude(700)},
		{Location: testHome.Offset(270, 1500).WithAltitude(650), LandingStart: true},
		{Location: testHome.Offset(90, 1500).WithAltitude(650), LandingStart: true},
		{Location: testHome, Land: true},
	}
}

func TestMissionLandingSequence(t *testing.T) {
	pos := &fixedPosition{loc: testHome.Offset(80, 2000)}
	m := NewMission(testMissionItems(), pos, nil)

	if !m.JumpToLandingSequence() {
		t.Fatalf("Expected landing sequence found")
	}
	if m.Cursor() != 2 {
		t.Errorf("Expected the eastern landing start, got item %d", m.Cursor())
	}

	// A second lookup from the same place is answered from the cache.
	m.JumpToLandingSequence()
	if m.Lookups != 2 || m.Searches != 1 {
		t.Errorf("Expected 2 lookups and 1 search, got %d and %d", m.Lookups, m.Searches)
	}

	pos.loc = testHome.Offset(260, 2500)
	if !m.JumpToLandingSequence() || m.Cursor() != 1 {
		t.Errorf("Expected the western landing start, got item %d", m.Cursor())
	}
	if m.Searches != 2 {
		t.Errorf("Expected a new search from a different area, got %d", m.Searches)
	}

	// A new mission invalidates cached results.
	rev := m.Revision()
	m.SetItems([]MissionItem{{Location: testHome.Offset(0, 1000)}})
	if m.Revision() != rev+1 {
		t.Errorf("Expected revision %d, got %d", rev+1, m.Revision())
	}
	if m.JumpToLandingSequence() {
		t.Errorf("Expected no landing sequence in new mission")
	}
	if m.Searches != 3 {
		t.Errorf("Expected a search for the new mission, got %d", m.Searches)
	}
}

func TestMissionStartAndResume(t *testing.T) {
	pos := &fixedPosition{loc: testHome.Offset(90, 2000)}
	m := NewMission(testMissionItems(), pos, nil)

	if !m.Start() || m.Cursor() != 0 {
		t.Errorf("Expected mission to start at item 0, got %d", m.Cursor())
	}

	m.JumpToLandingSequence()
	m.SetForceResume(true)
	if !m.Start() || m.Cursor() != 2 {
		t.Errorf("Expected resume at item 2, got %d", m.Cursor())
	}

	// Force resume applies only once.
	if !m.Start() || m.Cursor() != 0 {
		t.Errorf("Expected restart at item 0, got %d", m.Cursor())
	}

	empty := NewMission(nil, pos, nil)
	if empty.Start() {
		t.Errorf("Expected empty mission to refuse to start")
	}
	if _, done := empty.Advance(pos.loc); !done {
		t.Errorf("Expected empty mission to be done")
	}
}

func TestMissionAdvance(t *testing.T) {
	items := testMissionItems()
	pos := &fixedPosition{loc: testHome.Offset(0, 100).WithAltitude(700)}
	m := NewMission(items, pos, nil)
	m.Start()

	leg, done := m.Advance(pos.loc)
	if done || leg.Next != items[0].Location || leg.Prev != pos.loc || leg.Land {
		t.Errorf("Expected first leg toward item 0, got %+v done %v", leg, done)
	}

	// Within the acceptance radius of item 0.
	leg, _ = m.Advance(items[0].Location.Offset(45, 20))
	if leg.Next != items[0].Location || m.Cursor() != 1 {
		t.Errorf("Expected item 0 reached, cursor %d", m.Cursor())
	}

	// Past the finish line of item 1 without coming close to it.
	beyond := items[1].Location.Offset(180, 300).Offset(270, 500)
	m.Advance(beyond)
	if m.Cursor() != 2 {
		t.Errorf("Expected item 1 passed, cursor %d", m.Cursor())
	}

	m.Advance(items[2].Location)
	leg, done = m.Advance(testHome.WithAltitude(testHome.Altitude + 30))
	if done || !leg.Land || m.Cursor() != 3 {
		t.Errorf("Expected landing leg in progress, got %+v cursor %d", leg, m.Cursor())
	}

	m.Advance(testHome.WithAltitude(testHome.Altitude + 0.5))
	leg, done = m.Advance(testHome)
	if !done || !leg.Land {
		t.Errorf("Expected mission complete with landing, got %+v done %v", leg, done)
	}
}
