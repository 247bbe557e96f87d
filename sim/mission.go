// sim/mission.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/math"
	"github.com/mmp/flightmode/nav"
)

const (
	waypointAcceptanceRadius = 30 // meters
	touchdownTolerance       = 1  // meters

	// Landing sequence searches are cached per mission revision and
	// per cell of this size.
	landingCacheCellNM = 0.5
)

type MissionItem struct {
	Location av.Location `json:"location"`
	// LandingStart marks the start of a landing sequence.
	LandingStart bool `json:"landing_start,omitempty"`
	Land         bool `json:"land,omitempty"`
}

type landingKey struct {
	revision int
	cell     [2]int
}

// Mission is a list of waypoints flown in order, possibly including one
// or more landing sequences.
type Mission struct {
	items       []MissionItem
	revision    int
	cursor      int
	legStart    av.Location
	forceResume bool

	pos nav.PositionSource
	lg  *log.Logger

	// cache maps vehicle location cells to the index of the closest
	// landing sequence start (or -1), so that repeated searches from the
	// same area don't walk the mission again.
	cache *expirable.LRU[landingKey, int]

	// Lookups counts calls to JumpToLandingSequence; Searches counts the
	// ones that walked the mission.
	Lookups  int
	Searches int
}

func NewMission(items []MissionItem, pos nav.PositionSource, lg *log.Logger) *Mission {
	m := &Mission{
		pos:   pos,
		lg:    lg,
		cache: expirable.NewLRU[landingKey, int](16, nil, 10*time.Minute),
	}
	m.SetItems(items)
	return m
}

// SetItems replaces the mission and resets the cursor.
func (m *Mission) SetItems(items []MissionItem) {
	m.items = items
	m.revision++
	m.cursor = 0
	m.forceResume = false
}

func (m *Mission) Revision() int { return m.revision }
func (m *Mission) Cursor() int   { return m.cursor }

func (m *Mission) JumpToLandingSequence() bool {
	m.Lookups++

	cur := m.pos.Location()
	key := landingKey{revision: m.revision, cell: landingCacheCell(cur)}
	idx, ok := m.cache.Get(key)
	if !ok {
		m.Searches++
		idx = m.closestLandingStart(cur)
		m.cache.Add(key, idx)
	}

	if idx < 0 {
		m.lg.Info("mission has no landing sequence", slog.Int("revision", m.revision))
		return false
	}

	m.lg.Info("jumping to landing sequence", slog.Int("item", idx), slog.Any("start", m.items[idx].Location))
	m.cursor = idx
	m.legStart = cur
	return true
}

func landingCacheCell(l av.Location) [2]int {
	p := math.LL2NM(l.Position, math.NMPerLongitudeAt(l.Position.Latitude()))
	return [2]int{int(math.Floor(p[0] / landingCacheCellNM)), int(math.Floor(p[1] / landingCacheCellNM))}
}

func (m *Mission) closestLandingStart(cur av.Location) int {
	best, bestDist := -1, float32(0)
	for i, item := range m.items {
		if !item.LandingStart {
			continue
		}
		if d := cur.Distance(item.Location); best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (m *Mission) SetForceResume(b bool) { m.forceResume = b }

func (m *Mission) Start() bool {
	if len(m.items) == 0 {
		return false
	}
	if m.forceResume {
		m.forceResume = false
	} else {
		m.cursor = 0
		m.legStart = m.pos.Location()
	}
	return true
}

func (m *Mission) Advance(cur av.Location) (nav.Leg, bool) {
	if len(m.items) == 0 {
		return nav.Leg{}, true
	}
	if m.cursor >= len(m.items) {
		last := m.items[len(m.items)-1]
		return nav.Leg{Prev: m.legStart, Next: last.Location, Land: last.Land}, true
	}

	item := m.items[m.cursor]
	leg := nav.Leg{Prev: m.legStart, Next: item.Location, Land: item.Land}

	var reached bool
	if item.Land {
		reached = cur.Altitude-item.Location.Altitude < touchdownTolerance
	} else {
		reached = cur.Distance(item.Location) < waypointAcceptanceRadius ||
			cur.PastIntervalFinishLine(m.legStart, item.Location)
	}
	if reached {
		m.lg.Debug("mission item reached", slog.Int("item", m.cursor))
		m.legStart = item.Location
		m.cursor++
	}
	return leg, false
}
