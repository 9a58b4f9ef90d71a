// Package images selects a varied set of specimen images for a query.
package images

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	"github.com/kailas-cloud/bioportal/internal/domain/image"
	"github.com/kailas-cloud/bioportal/internal/domain/sampling"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

const (
	fieldProcessID      = "processid"
	fieldIdentification = "identification"
	unknownGroup        = "Unknown"
)

// Config holds image selection limits.
type Config struct {
	// PIDLimit bounds the process IDs sent to the image service.
	PIDLimit  int
	MaxImages int
	// SampleLimit bounds the records read from the store.
	SampleLimit int
}

// Service selects images for queries.
type Service struct {
	builder *condition.Builder
	records RecordRepository
	images  ImageService
	cfg     Config
	rnd     *rand.Rand
}

// New creates an images service.
func New(builder *condition.Builder, records RecordRepository, images ImageService, cfg Config) *Service {
	if cfg.PIDLimit <= 0 {
		cfg.PIDLimit = 500
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 50
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 5000
	}
	return &Service{
		builder: builder,
		records: records,
		images:  images,
		cfg:     cfg,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Summary returns up to maxImages images of the query behind qid, grouped by
// subtaxon when assortedSubtaxa is set and the query names a single taxon,
// and by orientation otherwise. A negative maxImages uses the default.
func (s *Service) Summary(ctx context.Context, qid string, maxImages int, assortedSubtaxa bool) (image.Summary, error) {
	if maxImages < 0 {
		maxImages = s.cfg.MaxImages
	}
	q, err := identity.Decode(qid)
	if err != nil {
		return image.Summary{}, err
	}
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return image.Summary{}, err
	}

	fields := []string{fieldProcessID, fieldIdentification}
	subRank := ""
	if assortedSubtaxa {
		subRank = subtaxonRank(q.Triplets)
	}
	if subRank != "" {
		fields = append(fields, subRank)
	}

	docs, err := s.records.FieldValues(ctx, where, fields, s.cfg.SampleLimit)
	if err != nil {
		return image.Summary{}, fmt.Errorf("image candidates: %w", err)
	}

	taxa := make(map[string]*string, len(docs))
	byGroup := make(map[string]map[string]struct{})
	var groupOrder []string
	for _, d := range docs {
		pid, ok := d[fieldProcessID].(string)
		if !ok || pid == "" {
			continue
		}
		if ident, ok := d[fieldIdentification].(string); ok {
			taxa[pid] = &ident
		} else {
			taxa[pid] = nil
		}
		group := ""
		if subRank != "" {
			group, _ = d[subRank].(string)
		}
		if _, ok := byGroup[group]; !ok {
			byGroup[group] = make(map[string]struct{})
			groupOrder = append(groupOrder, group)
		}
		byGroup[group][pid] = struct{}{}
	}

	groupOf := s.samplePIDs(byGroup, groupOrder, subRank != "")
	if len(groupOf) == 0 {
		return image.Summary{Images: map[string][]image.Image{}, Photographers: map[string]int{}}, nil
	}
	pids := make([]string, 0, len(groupOf))
	for pid := range groupOf {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	metadata, err := s.images.Images(ctx, pids)
	if err != nil {
		return image.Summary{}, err
	}

	selected := selectImages(metadata, groupOf, maxImages)
	out := image.Summary{Images: make(map[string][]image.Image), Photographers: make(map[string]int)}
	for _, m := range selected {
		photographer := unknownGroup
		if m.Photographer != nil {
			photographer = *m.Photographer
		}
		out.Photographers[photographer]++

		group := groupOf[m.ProcessID]
		if group == "" {
			group = unknownGroup
			if m.Meta != nil && *m.Meta != "" {
				group = *m.Meta
			}
		}
		out.Images[group] = append(out.Images[group], s.toImage(m, taxa[m.ProcessID]))
	}

	logger.FromContext(ctx).Debug("Images selected",
		zap.Int("candidates", len(docs)),
		zap.Int("processids", len(pids)),
		zap.Int("metadata", len(metadata)),
		zap.Int("selected", len(selected)))
	return out, nil
}

// subtaxonRank returns the rank below the single taxonomy triplet of ts, or
// "" when there is not exactly one or it names the finest rank.
func subtaxonRank(ts []triplet.Triplet) string {
	rank := ""
	for _, t := range ts {
		if t.Scope != fieldtable.ScopeTax {
			continue
		}
		if rank != "" {
			return ""
		}
		i := domtax.RankIndex(t.Subscope)
		if i < 0 || i+1 >= len(domtax.Ranks) {
			return ""
		}
		rank = domtax.Ranks[i+1]
	}
	return rank
}

// samplePIDs picks the process IDs sent to the image service and maps each to
// its group. Subtaxa share PIDLimit on a log scale.
func (s *Service) samplePIDs(byGroup map[string]map[string]struct{}, order []string, weighted bool) map[string]string {
	quota := make(map[string]int, len(order))
	if weighted {
		groups := make([]sampling.Group, 0, len(order))
		for _, g := range order {
			groups = append(groups, sampling.Group{Key: g, Count: len(byGroup[g])})
		}
		quota = sampling.CalculateWeight(groups, s.cfg.PIDLimit)
	} else {
		for _, g := range order {
			quota[g] = s.cfg.PIDLimit
		}
	}

	out := make(map[string]string)
	for _, g := range order {
		pids := make([]string, 0, len(byGroup[g]))
		for pid := range byGroup[g] {
			pids = append(pids, pid)
		}
		sort.Strings(pids)
		s.rnd.Shuffle(len(pids), func(i, j int) { pids[i], pids[j] = pids[j], pids[i] })
		for _, pid := range pids[:min(len(pids), quota[g])] {
			out[pid] = g
		}
	}
	return out
}

// selectImages interleaves the groups' images, best scored first, larger
// groups first, up to limit.
func selectImages(metadata []image.Metadata, groupOf map[string]string, limit int) []image.Metadata {
	byGroup := make(map[string][]image.Metadata)
	var order []string
	for _, m := range metadata {
		g, ok := groupOf[m.ProcessID]
		if !ok {
			continue
		}
		if _, seen := byGroup[g]; !seen {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], m)
	}

	groups := make([][]image.Metadata, 0, len(order))
	for _, g := range order {
		imgs := byGroup[g]
		sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].ScoreOf() > imgs[j].ScoreOf() })
		groups = append(groups, imgs)
	}
	return sampling.RoundRobin(groups, limit)
}

func (s *Service) toImage(m image.Metadata, taxon *string) image.Image {
	ext := objectExtension(m.ObjectID)
	object := s.images.BaseURL() + "/api/objects/" + m.ObjectID
	return image.Image{
		ImageURL:     object + "?subunit=1024." + ext,
		ThumbnailURL: object + "?subunit=320." + ext,
		ObjectID:     m.ObjectID,
		Batch:        m.Batch,
		FileName:     m.FileName,
		ProcessID:    m.ProcessID,
		SampleID:     m.SampleID,
		Taxon:        taxon,
		Meta:         m.Meta,
		Copyright: image.Copyright{
			Holder:      m.CopyrightHolder,
			Year:        m.CopyrightYear,
			License:     m.CopyrightLicense,
			Institution: m.CopyrightInstitution,
		},
		Photographer: m.Photographer,
	}
}

// objectExtension returns the file extension of an object ID of the form
// "<batch>_<name>.<ext>".
func objectExtension(objectID string) string {
	_, name, found := strings.Cut(objectID, "_")
	if !found {
		name = objectID
	}
	parts := strings.SplitN(name, ".", 3)
	return parts[len(parts)-1]
}
