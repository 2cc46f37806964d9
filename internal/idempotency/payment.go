package idempotency

import (
	"strings"

	"github.com/fjod/storefront-checkout/internal/domain"
)

// Keys a provider acknowledgement may carry its order reference under.
var providerReferenceKeys = []string{"orderID", "id"}

// PaymentAck pulls the provider reference and status out of an opaque
// acknowledgement. A nil or unrecognised ack yields a zero PaymentAck.
func PaymentAck(ack map[string]any) domain.PaymentAck {
	var out domain.PaymentAck
	if ack == nil {
		return out
	}
	for _, k := range providerReferenceKeys {
		if s, ok := ack[k].(string); ok && strings.TrimSpace(s) != "" {
			out.Reference = strings.TrimSpace(s)
			break
		}
	}
	if s, ok := ack["status"].(string); ok {
		out.Status = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

// DuplicateQuery lists what identifies an already-committed checkout.
// Empty fields are not matched on.
type DuplicateQuery struct {
	PaymentReference string
	Fingerprint      string
	SubmittedAt      string
	Email            string
}

// NewDuplicateQuery builds the lookup for a payload and its acknowledgement.
func NewDuplicateQuery(p *domain.CheckoutPayload, fingerprint string, ack domain.PaymentAck) DuplicateQuery {
	return DuplicateQuery{
		PaymentReference: ack.Reference,
		Fingerprint:      fingerprint,
		SubmittedAt:      p.Metadata.SubmittedAt,
		Email:            p.Contact.Email,
	}
}

// Matches reports whether an order satisfies q. Stores that cannot express the
// query natively use it directly; the Mongo repository mirrors it as a filter.
func (q DuplicateQuery) Matches(o *domain.Order) bool {
	if q.PaymentReference != "" &&
		(o.Metadata.PaymentReference == q.PaymentReference || o.Metadata.PaypalOrderID == q.PaymentReference) {
		return true
	}
	if q.Fingerprint != "" && o.Metadata.Fingerprint == q.Fingerprint {
		return true
	}
	return q.SubmittedAt != "" && q.Email != "" &&
		o.Metadata.SubmittedAt == q.SubmittedAt && o.Contact.Email == q.Email
}
