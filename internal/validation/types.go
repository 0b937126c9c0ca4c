package validation

// WebhookPayload is the envelope posted by the database change notification source.
type WebhookPayload struct {
	Type      string         `json:"type" validate:"required,oneof=INSERT UPDATE DELETE"` // upper-cased before validation
	Table     string         `json:"table" validate:"required"`
	Schema    string         `json:"schema,omitempty"`
	Record    map[string]any `json:"record"`     // new row snapshot, null on DELETE
	OldRecord map[string]any `json:"old_record"` // old row snapshot, null on INSERT
}
