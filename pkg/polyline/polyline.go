// Package polyline implements the encoded polyline algorithm format used by
// map clients to draw line geometry:
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/linewatch/linewatch/internal/geo"
)

const precision = 1e5

// Decode decodes an encoded polyline. A truncated trailing value is decoded
// as far as it goes.
func Decode(encoded string) []geo.Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []geo.Coordinate
	var lat, lon, index int
	for index < len(encoded) {
		var d int
		d, index = decodeValue(encoded, index)
		lat += d
		d, index = decodeValue(encoded, index)
		lon += d

		coords = append(coords, geo.Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}
	return coords
}

func decodeValue(encoded string, index int) (int, int) {
	var shift, result int
	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// Encode encodes coordinates with five decimal places of precision.
func Encode(coords []geo.Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*8)
	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the great-circle length of the path in meters.
func Length(coords []geo.Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += geo.Haversine(coords[i-1], coords[i])
	}
	return total
}
