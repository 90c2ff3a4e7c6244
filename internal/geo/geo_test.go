package geo

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/google/uuid"
)

var moscow = Point{Lng: 37.6176, Lat: 55.7558}

// offsetNorth returns a point m meters due north of p.
func offsetNorth(p Point, m float64) Point {
	return Point{Lng: p.Lng, Lat: p.Lat + m/EarthRadiusMeters*180/math.Pi}
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", moscow, moscow, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{0, 1}, 111195, 1},
		{"quarter meridian", Point{0, 0}, Point{0, 90}, math.Pi / 2 * EarthRadiusMeters, 1e-6},
		{"across the antimeridian", Point{179.9995, 0}, Point{-179.9995, 0}, 111.19, 0.1},
		{"moscow 300m north", moscow, offsetNorth(moscow, 300), 300, 1e-6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Distance(tc.a, tc.b)
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("Distance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.want)
			}
			if back := Distance(tc.b, tc.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("Distance is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestPointValidate(t *testing.T) {
	testCases := []struct {
		name  string
		p     Point
		valid bool
	}{
		{"origin", Point{0, 0}, true},
		{"corners", Point{180, -90}, true},
		{"lat too big", Point{0, 90.0001}, false},
		{"lng too small", Point{-180.5, 0}, false},
		{"nan", Point{math.NaN(), 0}, false},
		{"inf", Point{0, math.Inf(1)}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.valid && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tc.valid && apperr.KindOf(err) != apperr.InvalidCoordinate {
				t.Fatalf("got %v; want InvalidCoordinate", err)
			}
		})
	}
}

func TestPointJSONIsLngLat(t *testing.T) {
	b, err := json.Marshal(moscow)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[37.6176,55.7558]" {
		t.Fatalf("got %s", b)
	}
	var p Point
	if err := json.Unmarshal([]byte("[1]"), &p); err == nil {
		t.Fatal("expected an error for a single coordinate")
	}
}

func TestParseLatLng(t *testing.T) {
	p, err := ParseLatLng("55.7558", "37.6176")
	if err != nil {
		t.Fatal(err)
	}
	if p != moscow {
		t.Fatalf("got %+v; want %+v", p, moscow)
	}
	if _, err := ParseLatLng("91", "0"); apperr.KindOf(err) != apperr.InvalidCoordinate {
		t.Fatalf("got %v; want InvalidCoordinate", err)
	}
	if _, err := ParseLatLng("abc", "0"); apperr.KindOf(err) != apperr.InvalidCoordinate {
		t.Fatalf("got %v; want InvalidCoordinate", err)
	}
}

func TestQueryMoscowScenario(t *testing.T) {
	ix := NewIndex()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	near := uuid.New() // 300m, older
	far := uuid.New()  // 900m
	newest := uuid.New()

	mustPut(t, ix, near, offsetNorth(moscow, 300), base)
	mustPut(t, ix, far, offsetNorth(moscow, 900), base.Add(time.Minute))
	mustPut(t, ix, newest, offsetNorth(moscow, 450), base.Add(2*time.Minute))

	got := ix.Query(moscow, 500, nil)
	assertIDs(t, got, newest, near)

	got = ix.Query(moscow, 1000, nil)
	assertIDs(t, got, newest, far, near)
}

func TestQueryRadiusEdges(t *testing.T) {
	ix := NewIndex()
	id := uuid.New()
	p := offsetNorth(moscow, 250)
	mustPut(t, ix, id, p, time.Now())

	exact := Distance(moscow, p)
	if got := ix.Query(moscow, exact, nil); len(got) != 1 {
		t.Fatalf("boundary point must be included, got %v", got)
	}
	if got := ix.Query(moscow, 0, nil); len(got) != 0 {
		t.Fatalf("zero radius must be empty, got %v", got)
	}
	if got := ix.Query(moscow, -10, nil); len(got) != 0 {
		t.Fatalf("negative radius must be empty, got %v", got)
	}
	if got := ix.Query(Point{Lng: 0, Lat: 100}, 1000, nil); len(got) != 0 {
		t.Fatalf("invalid center must be empty, got %v", got)
	}
}

func TestQueryMonotoneInRadius(t *testing.T) {
	ix := NewIndex()
	start := time.Now()
	for i := 0; i < 200; i++ {
		p := Point{Lng: moscow.Lng + float64(i%20)*0.003, Lat: moscow.Lat + float64(i/20)*0.002}
		mustPut(t, ix, uuid.New(), p, start.Add(time.Duration(i)*time.Second))
	}

	prev := map[uuid.UUID]bool{}
	for _, r := range []float64{50, 200, 500, 1000, 3000, 10000} {
		got := ix.Query(moscow, r, nil)
		seen := map[uuid.UUID]bool{}
		for _, id := range got {
			seen[id] = true
		}
		for id := range prev {
			if !seen[id] {
				t.Fatalf("radius %v lost %v which a smaller radius returned", r, id)
			}
		}
		prev = seen
	}
	if len(prev) != 200 {
		t.Fatalf("10km should cover every point, got %d", len(prev))
	}
}

func TestQueryMatchesBruteForce(t *testing.T) {
	ix := NewIndex()
	type rec struct {
		id uuid.UUID
		p  Point
	}
	var all []rec
	for i := 0; i < 300; i++ {
		p := Point{Lng: 179.98 + float64(i%30)*0.0015, Lat: -0.01 + float64(i/30)*0.002}
		if p.Lng > 180 {
			p.Lng -= 360
		}
		id := uuid.New()
		all = append(all, rec{id, p})
		mustPut(t, ix, id, p, time.Now())
	}

	center := Point{Lng: 180, Lat: 0}
	for _, r := range []float64{100, 700, 2500} {
		want := 0
		for _, rc := range all {
			if Distance(center, rc.p) <= r {
				want++
			}
		}
		if got := len(ix.Query(center, r, nil)); got != want {
			t.Errorf("radius %v: got %d ids; want %d", r, got, want)
		}
	}
}

func TestQueryRecencyTieBreak(t *testing.T) {
	ix := NewIndex()
	at := time.Now()
	a, b := uuid.UUID{1}, uuid.UUID{2}
	mustPut(t, ix, b, moscow, at)
	mustPut(t, ix, a, moscow, at)
	assertIDs(t, ix.Query(moscow, 10, nil), a, b)
}

func TestPutMovesAndRemove(t *testing.T) {
	ix := NewIndex()
	id := uuid.New()
	mustPut(t, ix, id, moscow, time.Now())
	mustPut(t, ix, id, Point{Lng: 30.3158, Lat: 59.9391}, time.Now())

	if got := ix.Query(moscow, 1000, nil); len(got) != 0 {
		t.Fatalf("moved entry still found at old place: %v", got)
	}
	if ix.Len() != 1 {
		t.Fatalf("Len = %d; want 1", ix.Len())
	}
	ix.Remove(id)
	if ix.Has(id) || ix.Len() != 0 {
		t.Fatal("entry not removed")
	}

	if err := ix.Put(id, Point{Lng: 200}, time.Now()); apperr.KindOf(err) != apperr.InvalidCoordinate {
		t.Fatalf("got %v; want InvalidCoordinate", err)
	}
}

func TestQueryKeepFilter(t *testing.T) {
	ix := NewIndex()
	skip := uuid.New()
	keep := uuid.New()
	mustPut(t, ix, skip, moscow, time.Now())
	mustPut(t, ix, keep, moscow, time.Now())
	got := ix.Query(moscow, 10, func(id uuid.UUID) bool { return id != skip })
	assertIDs(t, got, keep)
}

func mustPut(t *testing.T, ix *Index, id uuid.UUID, p Point, at time.Time) {
	t.Helper()
	if err := ix.Put(id, p, at); err != nil {
		t.Fatalf("Put(%v): %v", p, err)
	}
}

func assertIDs(t *testing.T, got []uuid.UUID, want ...uuid.UUID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d ids %v; want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v; want %v", i, got[i], want[i])
		}
	}
}

func TestBoundsEnclosesCircle(t *testing.T) {
	tests := []struct {
		name   string
		center Point
		radius float64
		allLng bool
	}{
		{"moscow", Point{Lng: 37.6173, Lat: 55.7558}, 1500, false},
		{"antimeridian", Point{Lng: 179.999, Lat: 10}, 5000, false},
		{"near pole", Point{Lng: 0, Lat: 89.99}, 5000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, all := Bounds(tt.center, tt.radius)
			if all != tt.allLng {
				t.Fatalf("allLng = %v; want %v", all, tt.allLng)
			}
			if tt.name == "antimeridian" && b.MinLng <= b.MaxLng {
				t.Errorf("box %+v should wrap", b)
			}
			// walk the circle and a ring just inside it
			for deg := 0; deg < 360; deg += 5 {
				for _, frac := range []float64{0.5, 0.999} {
					p := destination(tt.center, float64(deg), tt.radius*frac)
					if !all && !b.Contains(p) {
						t.Errorf("bearing %d at %.3f of radius: %+v outside %+v", deg, frac, p, b)
					}
					if p.Lat < b.MinLat || p.Lat > b.MaxLat {
						t.Errorf("bearing %d: latitude %v outside [%v, %v]", deg, p.Lat, b.MinLat, b.MaxLat)
					}
				}
			}
		})
	}
}

// destination moves dist meters from p along bearing degrees.
func destination(p Point, bearing, dist float64) Point {
	rad := math.Pi / 180
	d := dist / EarthRadiusMeters
	lat1, lng1, th := p.Lat*rad, p.Lng*rad, bearing*rad
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(th))
	lng2 := lng1 + math.Atan2(math.Sin(th)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return Point{Lng: wrapLng(lng2 / rad), Lat: lat2 / rad}
}
