package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Insert(t *testing.T) {
	body := []byte(`{"type":"INSERT","table":"listings","schema":"public","record":{"id":42,"slug":"acme-widget","status":"published"},"old_record":null}`)

	ev, err := Normalize(body)
	require.NoError(t, err)

	assert.Equal(t, Insert, ev.Operation)
	assert.Equal(t, TableListings, ev.Table)
	assert.Equal(t, "public", ev.Schema)
	assert.Equal(t, "42", ev.NewRow.ID())
	assert.Nil(t, ev.OldRow)
	assert.Len(t, string(ev.Fingerprint), 64)
	assert.Equal(t, body, ev.Raw)

	slug, ok := ev.Slug()
	assert.True(t, ok)
	assert.Equal(t, "acme-widget", slug)
}

func TestNormalize_DeleteKeepsOnlyOldRow(t *testing.T) {
	body := []byte(`{"type":"delete","table":"listings","record":{"id":"x"},"old_record":{"id":"x","slug":"old-slug"}}`)

	ev, err := Normalize(body)
	require.NoError(t, err)

	assert.Equal(t, Delete, ev.Operation)
	assert.Nil(t, ev.NewRow)
	slug, ok := ev.Slug()
	assert.True(t, ok)
	assert.Equal(t, "old-slug", slug)
}

func TestNormalize_SlugPrefersNewRow(t *testing.T) {
	body := []byte(`{"type":"UPDATE","table":"listings","record":{"id":"1","slug":"new"},"old_record":{"id":"1","slug":"old"}}`)

	ev, err := Normalize(body)
	require.NoError(t, err)

	slug, _ := ev.Slug()
	assert.Equal(t, "new", slug)
}

func TestNormalize_UnknownTableAccepted(t *testing.T) {
	ev, err := Normalize([]byte(`{"type":"INSERT","table":"foo_bar","record":{"id":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "foo_bar", ev.Table)
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"array body":        `[1,2,3]`,
		"null body":         `null`,
		"missing type":      `{"table":"listings","record":{}}`,
		"missing table":     `{"type":"INSERT","record":{}}`,
		"unknown type":      `{"type":"TRUNCATE","table":"listings"}`,
		"insert no record":  `{"type":"INSERT","table":"listings","record":null}`,
		"delete no old":     `{"type":"DELETE","table":"listings"}`,
		"record not object": `{"type":"INSERT","table":"listings","record":"oops"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload))

			var me *MalformedError
			require.True(t, errors.As(err, &me))
			assert.NotEmpty(t, me.Fields)
		})
	}
}

func TestComputeFingerprint_StableAcrossFormatting(t *testing.T) {
	a := []byte(`{"type":"UPDATE","table":"listings","record":{"id":1,"title":"A"}}`)
	b := []byte("{\n  \"table\": \"listings\",\n  \"record\": {\"title\": \"A\", \"id\": 1},\n  \"type\": \"UPDATE\"\n}")
	c := []byte(`{"type":"UPDATE","table":"listings","record":{"id":1,"title":"B"}}`)

	fa, err := ComputeFingerprint(a)
	require.NoError(t, err)
	fb, err := ComputeFingerprint(b)
	require.NoError(t, err)
	fc, err := ComputeFingerprint(c)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)

	ev, err := Normalize(a)
	require.NoError(t, err)
	assert.Equal(t, fa, ev.Fingerprint)
}

func TestRow_Accessors(t *testing.T) {
	ev, err := Normalize([]byte(`{"type":"INSERT","table":"listings","record":{
		"id": 9007199254740993,
		"price": "125000.50",
		"featured": true,
		"tags": ["a", 1, "b"],
		"address": {"city": "Lisbon"},
		"created_at": "2024-03-01T10:00:00.5+00:00",
		"updated_at": 1709287200000
	}}`))
	require.NoError(t, err)
	r := ev.NewRow

	assert.Equal(t, "9007199254740993", r.ID())

	price, ok := r.Float("price")
	assert.True(t, ok)
	assert.InDelta(t, 125000.50, price, 0.001)

	featured, ok := r.Bool("featured")
	assert.True(t, ok)
	assert.True(t, featured)

	tags, ok := r.Strings("tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tags)

	addr, ok := r.Object("address")
	assert.True(t, ok)
	city, _ := addr.Text("city")
	assert.Equal(t, "Lisbon", city)

	created, ok := r.Time("created_at")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC).UnixMilli(), created.UnixMilli())

	updated, ok := r.Time("updated_at")
	assert.True(t, ok)
	assert.Equal(t, int64(1709287200000), updated.UnixMilli())

	_, ok = r.Float("missing")
	assert.False(t, ok)
}

func TestRow_FloatRejectsNonFinite(t *testing.T) {
	r := Row{"a": "NaN", "b": "Infinity", "c": "-Inf", "d": "1e400", "e": "42.5"}
	for _, key := range []string{"a", "b", "c", "d"} {
		_, ok := r.Float(key)
		assert.False(t, ok, key)
	}
	_, ok := r.Int("a")
	assert.False(t, ok)

	f, ok := r.Float("e")
	assert.True(t, ok)
	assert.Equal(t, 42.5, f)
}

func TestRow_Version(t *testing.T) {
	assert.Equal(t, int64(1709287200000), Row{"updated_at": "2024-03-01T10:00:00Z"}.Version())
	assert.Equal(t, int64(1709287200000), Row{"updated_at": json.Number("1709287200000")}.Version())
	assert.Zero(t, Row{}.Version())
	assert.Zero(t, Row{"updated_at": "not a time"}.Version())
}
