// Package idempotency derives the content fingerprint used to detect repeated
// checkouts and extracts the payment provider reference from an acknowledgement.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fjod/storefront-checkout/internal/domain"
)

// Version suffix lets the hash input evolve without colliding with old fingerprints.
const fingerprintDomain = "storefront/checkout/v1"

type fingerprintInput struct {
	Email          string  `json:"email"`
	SubmittedAt    *string `json:"submittedAt"`
	ShippingOption string  `json:"shippingOption"`
	Items          [][]any `json:"items"`
}

type fingerprintLine struct {
	productID string
	color     string
	size      string
	price     float64
	quantity  int
}

// Fingerprint returns a hex SHA-256 over the logical content of a checkout.
// Line order does not affect the result.
func Fingerprint(p *domain.CheckoutPayload) (string, error) {
	lines := make([]fingerprintLine, len(p.Items))
	for i, item := range p.Items {
		lines[i] = fingerprintLine{
			productID: item.ProductID.Hex(),
			color:     item.Color,
			size:      item.Size,
			price:     domain.Round2(item.UnitPrice),
			quantity:  item.Quantity,
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.productID != b.productID {
			return a.productID < b.productID
		}
		if a.color != b.color {
			return a.color < b.color
		}
		return a.size < b.size
	})

	in := fingerprintInput{
		Email:          strings.ToLower(p.Contact.Email),
		ShippingOption: p.ShippingOption.String(),
		Items:          make([][]any, len(lines)),
	}
	if p.Metadata.SubmittedAt != "" {
		ts := p.Metadata.SubmittedAt
		in.SubmittedAt = &ts
	}
	for i, l := range lines {
		in.Items[i] = []any{l.productID, l.color, l.size, l.price, l.quantity}
	}

	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(fingerprintDomain, data), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
