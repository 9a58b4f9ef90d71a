package mongo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
)

const (
	idField        = "_id"
	processIDField = "processid"
	lookupAs       = "summary"
	countsField    = "counts"
)

// FindIDs returns the sorted IDs of documents matching q.
func (s *Store) FindIDs(ctx context.Context, q *db.IDQuery) ([]string, error) {
	if q.Bounded && q.Limit <= 0 {
		return []string{}, nil
	}

	opts := options.Find().
		SetProjection(bson.D{{Key: idField, Value: 1}}).
		SetSort(bson.D{{Key: idField, Value: 1}})
	if q.Bounded {
		opts.SetLimit(int64(q.Limit))
	}

	ids := []string{}
	err := s.run(db.OpFindIDs, q.Collection, &q.Where, func() (int, error) {
		cur, err := s.collection(q.Collection).Find(ctx, conditionFilter(q.Where), opts)
		if err != nil {
			return 0, err
		}
		var rows []struct {
			ID any `bson:"_id"`
		}
		if err := cur.All(ctx, &rows); err != nil {
			return 0, err
		}
		for _, r := range rows {
			ids = append(ids, idString(r.ID))
		}
		return len(ids), nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindByIDs fetches documents by ID, preserving the order of ids. Missing IDs are skipped.
func (s *Store) FindByIDs(ctx context.Context, collection string, ids []string) ([]db.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var out []db.Document
	err := s.run(db.OpFindByIDs, collection, nil, func() (int, error) {
		filter := bson.D{{Key: idField, Value: bson.D{{Key: "$in", Value: stringsA(ids)}}}}
		cur, err := s.collection(collection).Find(ctx, filter)
		if err != nil {
			return 0, err
		}
		docs, err := decodeAll(ctx, cur)
		if err != nil {
			return 0, err
		}
		byID := make(map[string]db.Document, len(docs))
		for _, d := range docs {
			byID[idString(d[idField])] = d
		}
		for _, id := range ids {
			if d, ok := byID[id]; ok {
				out = append(out, d)
			}
		}
		return len(out), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns the documents matching q.
func (s *Store) Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error) {
	opts := options.Find()
	if len(q.Fields) > 0 {
		proj := make(bson.D, 0, len(q.Fields))
		for _, f := range q.Fields {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(proj)
	}
	if len(q.Sort) > 0 {
		sort := make(bson.D, 0, len(q.Sort))
		for _, f := range q.Sort {
			dir := 1
			if f.Descending {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	var out []db.Document
	err := s.run(db.OpFind, q.Collection, q.Where, func() (int, error) {
		cur, err := s.collection(q.Collection).Find(ctx, findFilter(q), opts)
		if err != nil {
			return 0, err
		}
		out, err = decodeAll(ctx, cur)
		return len(out), err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GroupBy groups matching records by q.Field, collecting their process IDs.
func (s *Store) GroupBy(ctx context.Context, q *db.GroupQuery) ([]db.GroupRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: conditionFilter(q.Where)}},
		{{Key: "$group", Value: bson.D{
			{Key: idField, Value: "$" + q.Field},
			{Key: "processids", Value: bson.D{{Key: "$push", Value: "$" + processIDField}}},
		}}},
	}

	var out []db.GroupRow
	err := s.run(db.OpGroupBy, q.Collection, &q.Where, func() (int, error) {
		docs, err := s.aggregate(ctx, q.Collection, pipeline)
		if err != nil {
			return 0, err
		}
		out = make([]db.GroupRow, 0, len(docs))
		for _, d := range docs {
			out = append(out, db.GroupRow{
				Field:      q.Field,
				Value:      d[idField],
				ProcessIDs: stringList(d["processids"]),
			})
		}
		return len(out), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GroupPaths groups matching records by their full rank path, collecting distinct process IDs.
func (s *Store) GroupPaths(ctx context.Context, q *db.PathQuery) ([]db.PathRow, error) {
	key := make(bson.D, 0, len(q.Ranks))
	for _, r := range q.Ranks {
		key = append(key, bson.E{Key: r, Value: "$" + r})
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: conditionFilter(q.Where)}},
		{{Key: "$group", Value: bson.D{
			{Key: idField, Value: key},
			{Key: "processids", Value: bson.D{{Key: "$addToSet", Value: "$" + processIDField}}},
		}}},
	}

	var out []db.PathRow
	err := s.run(db.OpGroupPaths, q.Collection, &q.Where, func() (int, error) {
		docs, err := s.aggregate(ctx, q.Collection, pipeline)
		if err != nil {
			return 0, err
		}
		out = make([]db.PathRow, 0, len(docs))
		for _, d := range docs {
			names := make(map[string]string, len(q.Ranks))
			if group, ok := d[idField].(map[string]any); ok {
				for _, r := range q.Ranks {
					if v, ok := group[r].(string); ok {
						names[r] = v
					}
				}
			}
			out = append(out, db.PathRow{Names: names, ProcessIDs: stringList(d["processids"])})
		}
		return len(out), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup joins registry rows with their summary document and merges the
// summary counts into each row.
func (s *Store) Lookup(ctx context.Context, q *db.LookupQuery) ([]db.Document, error) {
	var pipeline mongo.Pipeline
	if q.MatchKey != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: q.MatchKey, Value: bson.D{{Key: "$in", Value: bson.A(q.Values)}}},
		}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: q.Summary},
		{Key: "localField", Value: q.RegistryKey},
		{Key: "foreignField", Value: q.SummaryKey},
		{Key: "as", Value: lookupAs},
	}}})
	if q.Inner {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: lookupAs + ".0", Value: bson.D{{Key: "$exists", Value: true}}},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: bson.D{
			{Key: "$mergeObjects", Value: bson.A{
				"$$ROOT",
				bson.D{{Key: "$ifNull", Value: bson.A{
					bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + lookupAs + "." + countsField, 0}}},
					bson.D{},
				}}},
			}},
		}}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: lookupAs, Value: 0}}}},
	)
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}

	var out []db.Document
	err := s.run(db.OpLookup, q.Registry, nil, func() (int, error) {
		var err error
		out, err = s.aggregate(ctx, q.Registry, pipeline)
		return len(out), err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountDistinct counts the distinct values of q.Field among rows matching q.Criteria.
func (s *Store) CountDistinct(ctx context.Context, q *db.DistinctQuery) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: join(false, criteriaFilter(q.Criteria))}},
		{{Key: "$group", Value: bson.D{{Key: idField, Value: "$" + q.Field}}}},
		{{Key: "$count", Value: "n"}},
	}

	var n int64
	err := s.run(db.OpCountDistinct, q.Collection, nil, func() (int, error) {
		docs, err := s.aggregate(ctx, q.Collection, pipeline)
		if err != nil {
			return 0, err
		}
		if len(docs) > 0 {
			if v, ok := docs[0]["n"].(json.Number); ok {
				n, _ = v.Int64()
			}
		}
		return len(docs), nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]db.Document, error) {
	cur, err := s.collection(collection).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

// run times fn, logs the query and wraps driver failures.
func (s *Store) run(op, collection string, where *condition.Condition, fn func() (int, error)) error {
	start := time.Now()
	rows, err := fn()
	elapsed := time.Since(start)

	e := entry{op: op, collection: collection, rows: rows, elapsed: elapsed, err: err}
	if where != nil {
		e.where = where.String()
		e.params = where.Params
	}
	s.log.write(e)
	s.observe(op, elapsed)

	if err != nil {
		return &db.Error{Op: op, Err: err}
	}
	return nil
}

// decodeAll drains cur into JSON-compatible documents.
func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]db.Document, error) {
	defer func() { _ = cur.Close(ctx) }()

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	out := make([]db.Document, 0, len(raw))
	for _, m := range raw {
		d, err := normalize(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// normalize converts driver types (primitive.M, primitive.A, ObjectID, DateTime)
// into plain maps, slices and json.Number values.
func normalize(m bson.M) (db.Document, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w: %w", db.ErrMalformed, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out db.Document
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize document: %w: %w", db.ErrMalformed, err)
	}
	return out, nil
}

func idString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, idString(it))
	}
	return out
}
