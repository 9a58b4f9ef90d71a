package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- kv.go tests ---

func TestMGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("MGET", "k1", "k2", "k3")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString(`{"a":1}`),
			mock.RedisNil(),
			mock.RedisString(`{"b":2}`),
		)))

	s := NewStoreForTest(c)
	got, err := s.MGet(context.Background(), []string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if string(got[0]) != `{"a":1}` || got[1] != nil || string(got[2]) != `{"b":2}` {
		t.Errorf("unexpected entries: %q", got)
	}
}

func TestMGet_Empty(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	got, err := s.MGet(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("MGet(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestMGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("MGET", "k1")).
		Return(mock.ErrorResult(errors.New("connection refused")))

	s := NewStoreForTest(c)
	_, err := s.MGet(context.Background(), []string{"k1"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpMGet {
		t.Fatalf("expected MGET db.Error, got %v", err)
	}
}

func TestMSet_WithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("SET", "k1", "v1", "EX", "60"),
			mock.Match("SET", "k2", "v2", "EX", "60"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("OK")),
		})

	s := NewStoreForTest(c)
	ok, err := s.MSet(context.Background(), []db.KVItem{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2")},
	}, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ok) != 2 || !ok[0] || !ok[1] {
		t.Errorf("unexpected results: %v", ok)
	}
}

func TestMSet_NoTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("SET", "stats", "{}")).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisString("OK"))})

	s := NewStoreForTest(c)
	ok, err := s.MSet(context.Background(), []db.KVItem{{Key: "stats", Value: []byte("{}")}}, 0)
	if err != nil || len(ok) != 1 || !ok[0] {
		t.Fatalf("MSet = %v, %v", ok, err)
	}
}

func TestMSet_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.ErrorResult(errors.New("OOM")),
		})

	s := NewStoreForTest(c)
	ok, err := s.MSet(context.Background(), []db.KVItem{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2")},
	}, time.Hour)
	if err == nil {
		t.Fatal("expected error")
	}
	if !ok[0] || ok[1] {
		t.Errorf("unexpected results: %v", ok)
	}
}
