package events

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-listing-sync/internal/validation"
)

// ErrMalformedPayload is returned when a body is not a valid change notification.
var ErrMalformedPayload = errors.New("malformed payload")

var validate = validation.New()

// MalformedError carries the field level reasons behind ErrMalformedPayload.
type MalformedError struct {
	Cause  error
	Fields map[string]string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrMalformedPayload, e.Cause)
}

func (e *MalformedError) Unwrap() []error { return []error{ErrMalformedPayload, e.Cause} }

// Normalize parses a raw notification body into a ChangeEvent and fingerprints it.
// Any table name is accepted; routing decides what to do with it.
func Normalize(body []byte) (ChangeEvent, error) {
	var generic map[string]any
	if err := decode(body, &generic); err != nil {
		return ChangeEvent{}, &MalformedError{Cause: err, Fields: validation.ErrorsToMap(err)}
	}
	if generic == nil {
		err := errors.New("body is null")
		return ChangeEvent{}, &MalformedError{Cause: err, Fields: validation.ErrorsToMap(err)}
	}

	var payload validation.WebhookPayload
	if err := decode(body, &payload); err != nil {
		return ChangeEvent{}, &MalformedError{Cause: err, Fields: validation.ErrorsToMap(err)}
	}
	payload.Type = strings.ToUpper(strings.TrimSpace(payload.Type))
	payload.Table = strings.TrimSpace(payload.Table)
	if err := validate.Struct(payload); err != nil {
		return ChangeEvent{}, &MalformedError{Cause: err, Fields: validation.ErrorsToMap(err)}
	}

	fp, err := fingerprintOf(generic)
	if err != nil {
		return ChangeEvent{}, &MalformedError{Cause: err, Fields: validation.ErrorsToMap(err)}
	}

	ev := ChangeEvent{
		Operation:   Operation(payload.Type),
		Table:       payload.Table,
		Schema:      payload.Schema,
		Fingerprint: fp,
		Raw:         body,
	}
	switch ev.Operation {
	case Insert:
		ev.NewRow = Row(payload.Record)
	case Update:
		ev.NewRow = Row(payload.Record)
		ev.OldRow = Row(payload.OldRecord)
	case Delete:
		ev.OldRow = Row(payload.OldRecord)
	}
	return ev, nil
}

// ComputeFingerprint digests the canonical form of a body: SHA-256 over the JSON
// re-encoding with sorted keys and no insignificant whitespace.
func ComputeFingerprint(body []byte) (Fingerprint, error) {
	var generic any
	if err := decode(body, &generic); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return fingerprintOf(generic)
}

func fingerprintOf(v any) (Fingerprint, error) {
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize body: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

func decode(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return errors.New("decode json: trailing data after object")
	}
	return nil
}
