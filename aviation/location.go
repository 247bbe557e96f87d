// aviation/location.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"

	"github.com/mmp/flightmode/math"
)

// Location is a point in space: a lat-long position and an altitude in
// meters above mean sea level. It is a value type; methods never modify
// the receiver.
type Location struct {
	Position math.Point2LL `json:"position" msgpack:"p"`
	Altitude float32       `json:"altitude" msgpack:"a"`
}

func MakeLocation(lat, lon, alt float32) Location {
	return Location{Position: math.Point2LL{lon, lat}, Altitude: alt}
}

func (l Location) String() string {
	return fmt.Sprintf("%s %.1fm", l.Position.DDString(), l.Altitude)
}

func (l Location) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("lat", float64(l.Position.Latitude())),
		slog.Float64("lon", float64(l.Position.Longitude())),
		slog.Float64("alt", float64(l.Altitude)))
}

func (l Location) IsZero() bool {
	return l.Position.IsZero() && l.Altitude == 0
}

// WithAltitude returns the same position at the given altitude.
func (l Location) WithAltitude(alt float32) Location {
	l.Altitude = alt
	return l
}

// Distance returns the horizontal distance to o in meters.
func (l Location) Distance(o Location) float32 {
	return math.NMDistance2LL(l.Position, o.Position) * math.MetersPerNM
}

// AltitudeAbove returns how far l is above o, in meters; it is negative
// if l is below o.
func (l Location) AltitudeAbove(o Location) float32 {
	return l.Altitude - o.Altitude
}

// Offset returns the location dist meters away along the given true
// heading, at the same altitude.
func (l Location) Offset(hdg float32, dist float32) Location {
	nmPerLongitude := math.NMPerLongitudeAt(l.Position.Latitude())
	l.Position = math.Offset2LL(l.Position, hdg, dist*math.NMPerMeter, nmPerLongitude)
	return l
}

// Heading returns the true heading in degrees from l to o.
func (l Location) Heading(o Location) float32 {
	nmPerLongitude := math.NMPerLongitudeAt(l.Position.Latitude())
	v := math.Sub2f(math.LL2NM(o.Position, nmPerLongitude), math.LL2NM(l.Position, nmPerLongitude))
	hdg := math.Degrees(math.Atan2(v[0], v[1]))
	if hdg < 0 {
		hdg += 360
	}
	return hdg
}

// PastIntervalFinishLine reports whether l has crossed the line through
// p2 that is perpendicular to the leg from p1 to p2. A degenerate leg
// (p1 and p2 at the same position) counts as crossed.
func (l Location) PastIntervalFinishLine(p1, p2 Location) bool {
	return l.LinePathProportion(p1, p2) >= 1
}

// LinePathProportion returns how far along the leg from p1 to p2 l is,
// projected onto the leg: 0 abeam p1 and 1 abeam p2.
func (l Location) LinePathProportion(p1, p2 Location) float32 {
	nmPerLongitude := math.NMPerLongitudeAt(p1.Position.Latitude())
	return math.LinePathProportion(math.LL2NM(l.Position, nmPerLongitude),
		math.LL2NM(p1.Position, nmPerLongitude), math.LL2NM(p2.Position, nmPerLongitude))
}
