package polyline_test

import (
	"math"
	"testing"

	"github.com/linewatch/linewatch/internal/geo"
	"github.com/linewatch/linewatch/pkg/polyline"
)

// Reference vectors from the published algorithm description.
var googleExample = []geo.Coordinate{
	{Lat: 38.5, Lon: -120.2},
	{Lat: 40.7, Lon: -120.95},
	{Lat: 43.252, Lon: -126.453},
}

const googleEncoded = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func coordsEqual(a, b geo.Coordinate, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lon-b.Lon) <= tolerance
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []geo.Coordinate
	}{
		{"single point", "_p~iF~ps|U", googleExample[:1]},
		{"two points", "_p~iF~ps|U_ulLnnqC", googleExample[:2]},
		{"three points", googleEncoded, googleExample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := polyline.Decode(tt.encoded)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}
			for i, c := range result {
				if !coordsEqual(c, tt.expected[i], 1e-5) {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], c)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	if result := polyline.Decode(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestEncode(t *testing.T) {
	if got := polyline.Encode(googleExample); got != googleEncoded {
		t.Errorf("expected %q, got %q", googleEncoded, got)
	}
	if got := polyline.Encode(nil); got != "" {
		t.Errorf("expected empty string for nil coordinates, got %q", got)
	}
}

func TestRoundTrip_SouthernHemisphere(t *testing.T) {
	coords := []geo.Coordinate{
		{Lat: -33.44470, Lon: -70.72360},
		{Lat: -33.45178, Lon: -70.68653},
		{Lat: -33.44189, Lon: -70.65380},
		{Lat: -33.41737, Lon: -70.60163},
	}

	decoded := polyline.Decode(polyline.Encode(coords))
	if len(decoded) != len(coords) {
		t.Fatalf("expected %d coordinates, got %d", len(coords), len(decoded))
	}
	for i, c := range decoded {
		if !coordsEqual(c, coords[i], 1e-5) {
			t.Errorf("coordinate %d lost precision: expected %+v, got %+v", i, coords[i], c)
		}
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name           string
		coords         []geo.Coordinate
		expectedMeters float64
		tolerance      float64
	}{
		{"empty", nil, 0, 0},
		{"single point", []geo.Coordinate{{Lat: -33.44, Lon: -70.65}}, 0, 0},
		{"one degree of latitude", []geo.Coordinate{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}}, 111195, 10},
		{"there and back", []geo.Coordinate{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 0, Lon: 0}}, 222390, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := polyline.Length(tt.coords)
			if math.Abs(result-tt.expectedMeters) > tt.tolerance {
				t.Errorf("expected ~%.0fm (±%.0f), got %.0fm", tt.expectedMeters, tt.tolerance, result)
			}
		})
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = polyline.Encode(googleExample)
	}
}

func BenchmarkDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = polyline.Decode(googleEncoded)
	}
}
