package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// RowOutcome is the result of syncing one row of a bulk call, in input order.
type RowOutcome struct {
	Index int
	ID    string
	Err   error
}

// BulkReport aggregates a bulk sync. Failures never stop the remaining rows.
type BulkReport struct {
	Outcomes  []RowOutcome
	Succeeded int
	Failed    int
}

// Merge appends another report, reindexing its outcomes after ours.
func (r *BulkReport) Merge(other BulkReport) {
	offset := len(r.Outcomes)
	for _, o := range other.Outcomes {
		o.Index += offset
		r.Outcomes = append(r.Outcomes, o)
	}
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
}

func (r *BulkReport) record(o RowOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil {
		r.Failed++
	} else {
		r.Succeeded++
	}
}

// BulkSync ensures the index exists, then upserts every row. The error is
// non-nil only when the index cannot be ensured; row failures are in the report.
func (c *Client) BulkSync(ctx context.Context, rows []events.Row) (BulkReport, error) {
	if err := c.EnsureIndex(ctx); err != nil {
		return BulkReport{}, err
	}
	return c.BulkUpsert(ctx, rows), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error,omitempty"`
	} `json:"items"`
}

// BulkUpsert upserts rows with one _bulk request and reports per-row outcomes.
// Rows that cannot be mapped fail locally and are not sent.
func (c *Client) BulkUpsert(ctx context.Context, rows []events.Row) BulkReport {
	outcomes := make([]RowOutcome, len(rows))
	sent := make([]int, 0, len(rows)) // positions of rows included in the request

	var buf bytes.Buffer
	for i, row := range rows {
		outcomes[i] = RowOutcome{Index: i, ID: row.ID()}
		doc, err := BuildDocument(row, c.defaultCurrency)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		body, err := json.Marshal(doc)
		if err != nil {
			outcomes[i].Err = fmt.Errorf("marshal document: %w", err)
			continue
		}
		action := map[string]any{"_index": c.index, "_id": doc.ID}
		if v := row.Version(); v > 0 {
			action["version"] = v
			action["version_type"] = VersionType
		}
		meta, _ := json.Marshal(map[string]any{"index": action})
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
		sent = append(sent, i)
	}

	if len(sent) > 0 {
		c.sendBulk(ctx, &buf, sent, outcomes)
	}

	var report BulkReport
	for _, o := range outcomes {
		report.record(o)
	}
	c.log.Info().Int("rows", len(rows)).Int("succeeded", report.Succeeded).Int("failed", report.Failed).Msg("bulk upsert finished")
	return report
}

func (c *Client) sendBulk(ctx context.Context, body *bytes.Buffer, sent []int, outcomes []RowOutcome) {
	failAll := func(err error) {
		for _, i := range sent {
			outcomes[i].Err = err
		}
	}

	res, err := esapi.BulkRequest{Body: body}.Do(ctx, c.es)
	if err != nil {
		failAll(&DownstreamError{Op: "bulk", Err: err})
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		failAll(responseError("bulk", res))
		return
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		failAll(&DownstreamError{Op: "bulk", Err: fmt.Errorf("decode response: %w", err)})
		return
	}
	if len(parsed.Items) != len(sent) {
		failAll(&DownstreamError{Op: "bulk", Err: fmt.Errorf("response has %d items for %d rows", len(parsed.Items), len(sent))})
		return
	}
	// items come back in request order; 409 is an already newer document
	for k, item := range parsed.Items {
		i := sent[k]
		for action, result := range item {
			if result.Status == http.StatusConflict {
				continue
			}
			if result.Status < 200 || result.Status > 299 {
				outcomes[i].Err = &DownstreamError{Op: "bulk " + action, Status: result.Status, Body: string(result.Error)}
			}
		}
	}
}
