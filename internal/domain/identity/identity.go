// Package identity encodes sanitized queries into reversible, URL-safe query IDs.
//
// An identity is the ";"-joined sorted triplets followed by the extent marker,
// zlib-compressed at the fastest level and base64-encoded with the URL alphabet
// (padding kept). Identities produced by earlier deployments decode unchanged.
package identity

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// maxDecoded bounds the inflated payload of a foreign identity.
const maxDecoded = 64 << 10

var encoding = base64.URLEncoding

// Encode returns the identity of q.
func Encode(q triplet.Query) string {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
	if err != nil {
		// Only an invalid level fails here.
		panic(fmt.Sprintf("identity: zlib writer: %v", err))
	}
	_, _ = w.Write([]byte(strings.Join(q.Elements(), ";")))
	_ = w.Close()
	return encoding.EncodeToString(buf.Bytes())
}

// Decode reverses Encode. Any malformed input yields an error wrapping domain.ErrDecode.
func Decode(id string) (triplet.Query, error) {
	raw, err := encoding.DecodeString(id)
	if err != nil {
		return triplet.Query{}, decodeErr("base64", err)
	}

	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return triplet.Query{}, decodeErr("zlib header", err)
	}
	defer func() { _ = r.Close() }()

	payload, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil {
		return triplet.Query{}, decodeErr("zlib stream", err)
	}
	if len(payload) > maxDecoded {
		return triplet.Query{}, decodeErr("payload", fmt.Errorf("exceeds %d bytes", maxDecoded))
	}

	elems := strings.Split(string(payload), ";")
	if len(elems) < 2 {
		return triplet.Query{}, decodeErr("payload", fmt.Errorf("no triplets"))
	}

	e := extent.Extent(elems[len(elems)-1])
	if !e.Valid() {
		return triplet.Query{}, decodeErr("extent", fmt.Errorf("unknown extent %q", e))
	}

	ts := make([]triplet.Triplet, 0, len(elems)-1)
	for i, s := range elems[:len(elems)-1] {
		t, err := triplet.ParseStrict(s)
		if err != nil {
			return triplet.Query{}, decodeErr("triplet", err)
		}
		if t != t.Normalize() {
			return triplet.Query{}, decodeErr("triplet", fmt.Errorf("%q is not normalized", s))
		}
		if i > 0 && elems[i-1] > s {
			return triplet.Query{}, decodeErr("triplet", fmt.Errorf("%q is out of order", s))
		}
		ts = append(ts, t)
	}

	return triplet.Query{Triplets: ts, Extent: e}, nil
}

// Reissue decodes id and re-encodes it with another extent.
func Reissue(id string, e extent.Extent) (string, triplet.Query, error) {
	q, err := Decode(id)
	if err != nil {
		return "", triplet.Query{}, err
	}
	q = q.WithExtent(e)
	return Encode(q), q, nil
}

func decodeErr(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrDecode, stage, err)
}
