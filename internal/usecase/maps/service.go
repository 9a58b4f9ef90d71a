// Package maps turns the collection coordinates of a query into weighted map
// points and a crop box. Rendering is left to the client.
package maps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/geo"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

// CacheTTL is how long a country map stays cached.
const CacheTTL = 24 * time.Hour

const (
	fieldCoord        = "coord"
	fieldBoxes        = "boundingboxes"
	countryCollection = "countries"
	countryKey        = "iso_alpha_2"
	denseThreshold    = 1000
)

// Point is a collection location weighted by its record count plus offset.
type Point struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight int64   `json:"weight"`
}

// Map is the input of a map rendering.
type Map struct {
	Points []Point `json:"points"`
	Crop   geo.Box `json:"crop"`
	// SizeFactor shrinks markers on dense maps.
	SizeFactor float64 `json:"size_factor"`
}

// Service builds maps.
type Service struct {
	summaries FieldSummarizer
	registry  Registry
	meta      MetaCache
}

// New creates a maps service.
func New(summaries FieldSummarizer, registry Registry, meta MetaCache) *Service {
	return &Service{summaries: summaries, registry: registry, meta: meta}
}

// Map returns the points of the query behind qid, each weighted by its count
// plus offset, cropped to countryISO when given.
func (s *Service) Map(ctx context.Context, qid string, offset int, countryISO string) (Map, error) {
	if offset < 0 {
		return Map{}, fmt.Errorf("offset %d: %w", offset, domain.ErrInvalidRequest)
	}
	q, err := identity.Decode(qid)
	if err != nil {
		return Map{}, err
	}
	q = q.WithExtent(extent.Full)
	key := cachekey.Map(identity.Encode(q), float64(offset), countryISO)

	var out Map
	if countryISO != "" && s.meta.Get(ctx, key, &out) {
		return out, nil
	}

	coords, err := s.summaries.FieldCounts(ctx, q, fieldCoord)
	if err != nil {
		return Map{}, fmt.Errorf("map coordinates: %w", err)
	}
	out = Map{Points: make([]Point, 0, len(coords)), Crop: geo.World, SizeFactor: 1}
	if len(coords) > denseThreshold {
		out.SizeFactor = 0.5
	}

	log := logger.FromContext(ctx)
	keys := make([]string, 0, len(coords))
	for k := range coords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, err := geo.ParsePoint(k)
		if err != nil {
			log.Debug("Skipping coordinate", zap.String("coord", k), zap.Error(err))
			continue
		}
		out.Points = append(out.Points, Point{Lat: p.Lat, Lon: p.Lon, Weight: coords[k] + int64(offset)})
	}

	if countryISO != "" {
		crop, err := s.countryCrop(ctx, countryISO)
		if err != nil {
			return Map{}, err
		}
		out.Crop = crop
		s.meta.Set(ctx, key, out, CacheTTL)
	}
	return out, nil
}

func (s *Service) countryCrop(ctx context.Context, iso string) (geo.Box, error) {
	docs, err := s.registry.Documents(ctx, countryCollection, countryKey, []string{iso}, []string{fieldBoxes})
	if err != nil {
		return geo.Box{}, fmt.Errorf("country %s: %w", iso, err)
	}
	var boxes []string
	if len(docs) > 0 {
		boxes = stringList(docs[0][fieldBoxes])
	}
	box, ok, err := geo.CountryBox(iso, boxes)
	if err != nil {
		logger.FromContext(ctx).Warn("Malformed country bounding box", zap.String("country", iso), zap.Error(err))
		return geo.World, nil
	}
	if !ok {
		return geo.World, nil
	}
	return box.Crop(), nil
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, it := range x {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
