package search

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeES serves the handful of Elasticsearch endpoints the client uses.
type fakeES struct {
	mu          sync.Mutex
	indexExists bool
	docs        map[string]map[string]any
	versions    map[string]int64 // external versions, kept after delete like a tombstone
	reject      map[string]bool // document ids answered with 400
	failAll     int             // when non-zero every document call returns this status
	created     int
	calls       []string
}

func newFakeES() *fakeES {
	return &fakeES{docs: map[string]map[string]any{}, versions: map[string]int64{}, reject: map[string]bool{}}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`)
	case len(parts) == 1 && parts[0] == "_bulk":
		f.bulk(w, r)
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		if f.indexExists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception"},"status":400}`)
			return
		}
		f.indexExists = true
		f.created++
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) == 3 && parts[1] == "_doc":
		id := parts[2]
		if f.failAll != 0 {
			w.WriteHeader(f.failAll)
			_, _ = io.WriteString(w, `{"error":"down"}`)
			return
		}
		switch r.Method {
		case http.MethodPut, http.MethodPost:
			if f.reject[id] {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception"}}`)
				return
			}
			if !f.admit(id, r.URL.Query().Get("version"), r.URL.Query().Get("version_type")) {
				writeConflict(w)
				return
			}
			var doc map[string]any
			_ = json.NewDecoder(r.Body).Decode(&doc)
			f.docs[id] = doc
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"result":"created","_version":1}`)
		case http.MethodDelete:
			if !f.admit(id, r.URL.Query().Get("version"), r.URL.Query().Get("version_type")) {
				writeConflict(w)
				return
			}
			if _, ok := f.docs[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"result":"not_found"}`)
				return
			}
			delete(f.docs, id)
			_, _ = io.WriteString(w, `{"result":"deleted"}`)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeES) bulk(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID     string         `json:"_id"`
		Status int            `json:"status"`
		Error  map[string]any `json:"error,omitempty"`
	}
	var items []map[string]item
	hasErrors := false

	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var meta map[string]map[string]any
		if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !sc.Scan() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var doc map[string]any
		_ = json.Unmarshal(sc.Bytes(), &doc)

		id, _ := meta["index"]["_id"].(string)
		var version, versionType string
		if v, ok := meta["index"]["version"].(float64); ok {
			version = strconv.FormatInt(int64(v), 10)
		}
		versionType, _ = meta["index"]["version_type"].(string)
		if !f.admit(id, version, versionType) {
			hasErrors = true
			items = append(items, map[string]item{"index": {ID: id, Status: 409, Error: map[string]any{"type": "version_conflict_engine_exception"}}})
			continue
		}
		if f.reject[id] {
			hasErrors = true
			items = append(items, map[string]item{"index": {ID: id, Status: 400, Error: map[string]any{"type": "mapper_parsing_exception"}}})
			continue
		}
		f.docs[id] = doc
		items = append(items, map[string]item{"index": {ID: id, Status: 201}})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

// admit applies external_gte versioning and records the accepted version.
// Unversioned writes always pass.
func (f *fakeES) admit(id, version, versionType string) bool {
	if version == "" {
		return true
	}
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil || versionType != "external_gte" {
		return false
	}
	if current, ok := f.versions[id]; ok && v < current {
		return false
	}
	f.versions[id] = v
	return true
}

func writeConflict(w http.ResponseWriter) {
	w.WriteHeader(http.StatusConflict)
	_, _ = io.WriteString(w, `{"error":{"type":"version_conflict_engine_exception"},"status":409}`)
}

func (f *fakeES) doc(id string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	return d, ok
}

func newTestClient(t *testing.T, fake *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Host: srv.URL, APIKey: "key", DefaultCurrency: "EUR"}, zerolog.Nop())
	require.NoError(t, err)
	return c
}
