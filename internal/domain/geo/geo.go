// Package geo parses collection coordinates and country bounding boxes and
// derives the crop box of a map.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/bioportal/internal/domain"
)

// Crop box limits.
const (
	MinCropHeight = 40.0
	MinCropWidth  = 40.0
	CropBuffer    = 0.05
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Box is a latitude/longitude rectangle in degrees.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// World covers the whole globe.
var World = Box{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}

// Registry boxes of these countries span overseas territories badly.
var overrides = map[string]Box{
	"FR": {MinLat: -50.19693, MinLon: -179, MaxLat: 51.26496, MaxLon: 174.4},
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ParsePoint reads a "(lat, lon)" pair.
func ParsePoint(s string) (Point, error) {
	lat, lon, err := parsePair(s)
	if err != nil {
		return Point{}, err
	}
	if !ValidateCoordinates(lat, lon) {
		return Point{}, domain.NewParseError(s, "coordinates out of range")
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// ParseBox reads a registry bounding box "(maxlat, maxlon),(minlat, minlon)".
func ParseBox(s string) (Box, error) {
	i := strings.Index(s, "),(")
	if i < 0 {
		return Box{}, domain.NewParseError(s, "expected (maxlat, maxlon),(minlat, minlon)")
	}
	maxLat, maxLon, err := parsePair(s[:i+1])
	if err != nil {
		return Box{}, err
	}
	minLat, minLon, err := parsePair(s[i+2:])
	if err != nil {
		return Box{}, err
	}
	return Box{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, nil
}

// CountryBox returns the box of a country from its registry boxes. ok is
// false when the country has none.
func CountryBox(iso string, boxes []string) (b Box, ok bool, err error) {
	if o, found := overrides[strings.ToUpper(iso)]; found {
		return o, true, nil
	}
	if len(boxes) == 0 {
		return Box{}, false, nil
	}
	b, err = ParseBox(boxes[0])
	if err != nil {
		return Box{}, false, fmt.Errorf("country %s: %w", iso, err)
	}
	return b, true, nil
}

// Crop grows b to at least MinCropHeight by MinCropWidth around its center,
// pads it by CropBuffer of its size and clamps it to the globe.
func (b Box) Crop() Box {
	if h := b.MaxLat - b.MinLat; h < MinCropHeight {
		d := (MinCropHeight - h) / 2
		b.MinLat -= d
		b.MaxLat += d
	}
	if w := b.MaxLon - b.MinLon; w < MinCropWidth {
		d := (MinCropWidth - w) / 2
		b.MinLon -= d
		b.MaxLon += d
	}

	padLat := (b.MaxLat - b.MinLat) * CropBuffer / 2
	padLon := (b.MaxLon - b.MinLon) * CropBuffer / 2
	return Box{
		MinLat: max(b.MinLat-padLat, World.MinLat),
		MinLon: max(b.MinLon-padLon, World.MinLon),
		MaxLat: min(b.MaxLat+padLat, World.MaxLat),
		MaxLon: min(b.MaxLon+padLon, World.MaxLon),
	}
}

func parsePair(s string) (a, b float64, err error) {
	inner := strings.TrimSpace(s)
	inner = strings.TrimPrefix(inner, "(")
	inner = strings.TrimSuffix(inner, ")")
	first, second, found := strings.Cut(inner, ",")
	if !found {
		return 0, 0, domain.NewParseError(s, "expected a coordinate pair")
	}
	if a, err = strconv.ParseFloat(strings.TrimSpace(first), 64); err != nil {
		return 0, 0, domain.NewParseError(s, "latitude is not a number")
	}
	if b, err = strconv.ParseFloat(strings.TrimSpace(second), 64); err != nil {
		return 0, 0, domain.NewParseError(s, "longitude is not a number")
	}
	return a, b, nil
}
