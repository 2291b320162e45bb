package domain

// Invoice lifecycle event types acted on by the webhook reconciler.
const (
	EventInvoiceCreated               = "invoice.created"
	EventInvoiceFinalized             = "invoice.finalized"
	EventInvoicePaymentFailed         = "invoice.payment_failed"
	EventInvoicePaymentSucceeded      = "invoice.payment_succeeded"
	EventInvoicePaymentActionRequired = "invoice.payment_action_required"
	EventInvoiceVoided                = "invoice.voided"
	EventInvoiceMarkedUncollectible   = "invoice.marked_uncollectible"
	EventInvoiceUpdated               = "invoice.updated"
	EventInvoicePaid                  = "invoice.paid"
)

var relevantInvoiceEvents = map[string]struct{}{
	EventInvoiceCreated:               {},
	EventInvoiceFinalized:             {},
	EventInvoicePaymentFailed:         {},
	EventInvoicePaymentSucceeded:      {},
	EventInvoicePaymentActionRequired: {},
	EventInvoiceVoided:                {},
	EventInvoiceMarkedUncollectible:   {},
	EventInvoiceUpdated:               {},
	EventInvoicePaid:                  {},
}

// IsRelevantInvoiceEvent reports whether eventType is on the allow-list.
// Other event types are acknowledged and ignored.
func IsRelevantInvoiceEvent(eventType string) bool {
	_, ok := relevantInvoiceEvents[eventType]
	return ok
}

// StatusForEvent returns the status to record for an event.
// A payment failure is recorded even though the invoice itself stays open.
func StatusForEvent(eventType, invoiceStatus string) string {
	if eventType == EventInvoicePaymentFailed {
		return StatusPaymentFailed
	}
	return invoiceStatus
}
