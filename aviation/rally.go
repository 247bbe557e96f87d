// aviation/rally.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

// RTLAltitude returns the altitude (meters AMSL) at which to return to
// base. A negative rtlAltitude means to hold the current altitude;
// otherwise it is taken as a height above home.
func RTLAltitude(current, home Location, rtlAltitude float32) float32 {
	if rtlAltitude < 0 {
		return current.Altitude
	}
	return home.Altitude + rtlAltitude
}

// NearestRallyPoint returns the rally point closest to current. The
// returned Boolean is false if there are no rally points, or if a limit
// is given, every rally point is farther than limitKm, and home is closer
// than the nearest rally point.
func NearestRallyPoint(current, home Location, rallies []Location, limitKm float32) (Location, bool) {
	var nearest Location
	minDist := float32(-1)
	for _, r := range rallies {
		if r.Position.IsZero() {
			continue
		}
		if d := current.Distance(r); minDist < 0 || d < minDist {
			nearest, minDist = r, d
		}
	}

	if minDist < 0 {
		return Location{}, false
	}
	if limitKm > 0 && minDist > limitKm*1000 && current.Distance(home) < minDist {
		return Location{}, false
	}
	return nearest, true
}

// BestRallyOrHome returns the base point to return to: the nearest usable
// rally point, at its own altitude, or else home at homeAltitude.
func BestRallyOrHome(current, home Location, rallies []Location, limitKm float32, homeAltitude float32) Location {
	if r, ok := NearestRallyPoint(current, home, rallies, limitKm); ok {
		return r
	}
	return home.WithAltitude(homeAltitude)
}
