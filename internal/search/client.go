package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// DefaultIndex is the listings collection in the search engine.
const DefaultIndex = "listings"

// DownstreamError is a non-success response from the search engine.
type DownstreamError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *DownstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("search %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// Config addresses the search cluster.
type Config struct {
	Host            string // base URL, e.g. https://search.example.com:9243
	APIKey          string
	Index           string
	DefaultCurrency string
	Timeout         time.Duration     // response header timeout
	Transport       http.RoundTripper // overrides the default transport (tests)
}

// Client syncs listing documents into one index.
type Client struct {
	es              *elasticsearch.Client
	index           string
	defaultCurrency string
	log             zerolog.Logger
}

// NewClient builds the Elasticsearch client. It does not contact the cluster.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: cfg.Timeout,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		}
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{strings.TrimRight(cfg.Host, "/")},
		APIKey:       cfg.APIKey,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{
		es:              es,
		index:           cfg.Index,
		defaultCurrency: cfg.DefaultCurrency,
		log:             log.With().Str("component", "search").Str("index", cfg.Index).Logger(),
	}, nil
}

// VersionType guards writes with the row's updated_at so a replayed or
// reordered event can never overwrite a newer document.
const VersionType = "external_gte"

// Upsert creates or replaces the document for row, keyed by its id. A 409 means
// a newer version is already indexed and counts as success.
func (c *Client) Upsert(ctx context.Context, row events.Row) error {
	doc, err := BuildDocument(row, c.defaultCurrency)
	if err != nil {
		return &DownstreamError{Op: "upsert", Err: err}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return &DownstreamError{Op: "upsert", Err: fmt.Errorf("marshal document: %w", err)}
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}
	version := row.Version()
	if version > 0 {
		v := int(version)
		req.Version = &v
		req.VersionType = VersionType
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return &DownstreamError{Op: "upsert", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusConflict && version > 0 {
		c.log.Debug().Str("id", doc.ID).Int64("version", version).Msg("newer document already indexed")
		return nil
	}
	if res.IsError() {
		return responseError("upsert", res)
	}
	c.log.Debug().Str("id", doc.ID).Int64("version", version).Int("status", res.StatusCode).Msg("document upserted")
	return nil
}

// Remove deletes the document with id. A missing document counts as removed.
// When version is positive the delete only applies to documents at or below it;
// a 409 means the listing was re-indexed since and also counts as success.
func (c *Client) Remove(ctx context.Context, id string, version int64) error {
	if id == "" {
		return &DownstreamError{Op: "remove", Err: ErrMissingID}
	}
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: id,
	}
	if version > 0 {
		v := int(version)
		req.Version = &v
		req.VersionType = VersionType
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return &DownstreamError{Op: "remove", Err: err}
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		c.log.Debug().Str("id", id).Msg("document already absent")
		return nil
	case res.StatusCode == http.StatusConflict && version > 0:
		c.log.Debug().Str("id", id).Int64("version", version).Msg("newer document kept")
		return nil
	case res.IsError():
		return responseError("remove", res)
	}
	c.log.Debug().Str("id", id).Int64("version", version).Msg("document removed")
	return nil
}

// EnsureIndex creates the index with the listings mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.es)
	if err != nil {
		return &DownstreamError{Op: "index exists", Err: err}
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return &DownstreamError{Op: "index exists", Status: res.StatusCode}
	}

	res, err = esapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, c.es)
	if err != nil {
		return &DownstreamError{Op: "create index", Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		derr := responseError("create index", res)
		var de *DownstreamError
		// another instance created it between the two calls
		if errors.As(derr, &de) && strings.Contains(de.Body, "resource_already_exists_exception") {
			return nil
		}
		return derr
	}
	c.log.Info().Msg("index created")
	return nil
}

func responseError(op string, res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &DownstreamError{Op: op, Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
}
