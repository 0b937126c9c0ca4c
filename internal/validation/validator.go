package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with the webhook envelope rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the row snapshots required depend on the operation kind
	v.RegisterStructValidation(webhookPayloadStructValidation, WebhookPayload{})

	return v
}

// webhookPayloadStructValidation enforces which snapshots each operation must carry:
// INSERT and UPDATE need record, DELETE needs old_record.
func webhookPayloadStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(WebhookPayload)

	switch p.Type {
	case "INSERT", "UPDATE":
		if p.Record == nil {
			sl.ReportError(p.Record, "record", "Record", "required_for_"+p.Type, "")
		}
	case "DELETE":
		if p.OldRecord == nil {
			sl.ReportError(p.OldRecord, "old_record", "OldRecord", "required_for_DELETE", "")
		}
	}
}
