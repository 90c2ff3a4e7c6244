// Package geo implements great-circle distance and an in-memory proximity
// index keyed by entity id.
package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bwise1/sosedi/internal/apperr"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 position. It serialises as [lng, lat].
type Point struct {
	Lng float64
	Lat float64
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return apperr.E(apperr.InvalidCoordinate, "coordinates must be finite numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return apperr.E(apperr.InvalidCoordinate, "latitude %v out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return apperr.E(apperr.InvalidCoordinate, "longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lng, p.Lat})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var c []float64
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	if len(c) != 2 {
		return apperr.E(apperr.InvalidCoordinate, "coordinates must be [lng, lat]")
	}
	p.Lng, p.Lat = c[0], c[1]
	return nil
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ParseLatLng parses query-string coordinates, which arrive latitude first.
func ParseLatLng(lat, lng string) (Point, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Point{}, apperr.E(apperr.InvalidCoordinate, "lat must be a number")
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return Point{}, apperr.E(apperr.InvalidCoordinate, "lng must be a number")
	}
	p := Point{Lng: ln, Lat: la}
	return p, p.Validate()
}

// span is the half-size in degrees of the box around a circle of radius
// meters. ok is false when the circle covers every longitude.
func span(center Point, radius float64) (dLat, dLng float64, ok bool) {
	d := radius / EarthRadiusMeters
	dLat = d * 180 / math.Pi
	s := math.Sin(d) / math.Cos(center.Lat*math.Pi/180)
	if d >= math.Pi/2 || s >= 1 {
		return dLat, 180, false
	}
	return dLat, math.Asin(s) * 180 / math.Pi, true
}

const boxSlackDeg = 1e-9

// Box is a lat/lng rectangle. MinLng > MaxLng means it crosses the antimeridian.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Bounds returns the box enclosing the circle of radius meters around
// center. allLng reports that any longitude may match, which happens when
// the circle reaches a pole.
func Bounds(center Point, radius float64) (b Box, allLng bool) {
	dLat, dLng, ok := span(center, radius)
	// pad for rounding so points exactly on the circle stay inside
	dLat, dLng = dLat+boxSlackDeg, dLng+boxSlackDeg
	b = Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	if !ok || center.Lat-dLat <= -90 || center.Lat+dLat >= 90 {
		return b, true
	}
	b.MinLng = wrapLng(center.Lng - dLng)
	b.MaxLng = wrapLng(center.Lng + dLng)
	return b, false
}

func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	}
	return lng
}

// Contains reports whether p lies inside b, inclusive.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MinLng <= b.MaxLng {
		return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
}
