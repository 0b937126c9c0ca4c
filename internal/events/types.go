package events

import "fmt"

// Operation is the kind of row change.
type Operation string

const (
	Insert Operation = "INSERT"
	Update Operation = "UPDATE"
	Delete Operation = "DELETE"
)

// Source tables with dedicated routing. Any other table is accepted and ignored.
const (
	TableListings      = "listings"
	TableTaxonomyTerms = "taxonomy_terms"
)

// Fingerprint is the content digest of an event body, used as the ledger key.
type Fingerprint string

// ChangeEvent is a normalized change notification.
type ChangeEvent struct {
	Operation   Operation
	Table       string
	Schema      string
	NewRow      Row // INSERT, UPDATE
	OldRow      Row // UPDATE (optional), DELETE
	Fingerprint Fingerprint
	Raw         []byte // exact body as received
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Operation, e.Table, shortFingerprint(e.Fingerprint))
}

// Slug returns the slug of the changed row, preferring the new snapshot.
func (e ChangeEvent) Slug() (string, bool) {
	if s, ok := e.NewRow.Text("slug"); ok && s != "" {
		return s, true
	}
	if s, ok := e.OldRow.Text("slug"); ok && s != "" {
		return s, true
	}
	return "", false
}

func shortFingerprint(fp Fingerprint) string {
	if len(fp) > 12 {
		return string(fp[:12])
	}
	return string(fp)
}
