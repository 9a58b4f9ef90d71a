package images

import (
	"context"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/image"
)

// RecordRepository projects fields of primary records.
type RecordRepository interface {
	FieldValues(ctx context.Context, where condition.Condition, fields []string, limit int) ([]db.Document, error)
}

// ImageService fetches image metadata by process ID.
type ImageService interface {
	Images(ctx context.Context, processIDs []string) ([]image.Metadata, error)
	BaseURL() string
}
