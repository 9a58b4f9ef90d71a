package mongo

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// queryLog writes one structured entry per store query.
type queryLog struct {
	l *zap.Logger
}

func newQueryLog(l *zap.Logger) *queryLog {
	return &queryLog{l: l}
}

// entry describes one executed query.
type entry struct {
	op         string
	collection string
	where      string
	params     map[string][]string
	rows       int
	elapsed    time.Duration
	err        error
}

func (q *queryLog) write(e entry) {
	logFields := []zap.Field{
		zap.String("query_id", uuid.NewString()),
		zap.String("op", e.op),
		zap.String("collection", e.collection),
		zap.Int("rows", e.rows),
		zap.Duration("duration", e.elapsed),
	}
	if e.where != "" {
		logFields = append(logFields, zap.String("condition", e.where))
	}
	if len(e.params) > 0 {
		logFields = append(logFields, zap.Any("params", e.params))
	}
	if e.err != nil {
		q.l.Warn("query failed", append(logFields, zap.Error(e.err))...)
		return
	}
	q.l.Info("query", logFields...)
}
