// Package normalize turns an untrusted checkout submission into a validated
// domain.CheckoutPayload.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultOrigin = "web"
	defaultSource = "storefront"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Payload validates and normalizes raw. Rejections wrap domain.ErrValidation.
func Payload(raw map[string]any) (*domain.CheckoutPayload, error) {
	if raw == nil {
		return nil, &domain.ValidationError{Reason: "empty submission"}
	}

	lines := firstList(raw, cartKeys)
	if lines == nil {
		return nil, &domain.ValidationError{Field: "items", Reason: "no cart lines found"}
	}

	coerced, err := coerceLines(lines)
	if err != nil {
		return nil, err
	}
	items := MergeItems(coerced)
	if len(items) == 0 {
		return nil, &domain.ValidationError{Field: "items", Reason: "no valid cart lines"}
	}
	for _, item := range items {
		// merged lines may exceed the per-line cap together
		if err := item.CheckBounds(); err != nil {
			return nil, err
		}
	}

	contact := domain.Contact{
		Email: strings.ToLower(firstString(raw, emailKeys)),
		Phone: firstString(raw, phoneKeys),
	}
	if err := validate.Struct(contact); err != nil {
		return nil, fieldError("contact", err)
	}

	address := coerceAddress(firstObject(raw, addressKeys))
	if err := validate.Struct(address); err != nil {
		return nil, fieldError("shippingAddress", err)
	}

	payload := &domain.CheckoutPayload{
		Items:           items,
		ShippingOption:  domain.ParseShippingOption(firstString(raw, shippingOptionKeys)),
		Contact:         contact,
		ShippingAddress: address,
		CustomerID:      firstString(raw, customerIDKeys),
		Notes:           firstString(raw, notesKeys),
		Metadata: domain.SubmissionMetadata{
			SubmittedAt: firstString(raw, submittedAtKeys),
			Origin:      orDefault(firstString(raw, originKeys), defaultOrigin),
			Source:      orDefault(firstString(raw, sourceKeys), defaultSource),
		},
	}

	if amount, ok := firstNumber(raw, shippingAmountKeys); ok && amount >= 0 && amount <= domain.MaxUnitPrice {
		rounded := domain.Round2(amount)
		payload.ShippingAmount = &rounded
	}

	return payload, nil
}

func coerceLines(lines []any) ([]domain.CartItem, error) {
	items := make([]domain.CartItem, 0, len(lines))
	for _, l := range lines {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		item, ok, err := coerceLine(m)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// coerceLine drops lines with a bad product reference or a non-positive quantity,
// and rejects quantities above domain.MaxLineQuantity. Price hints that are
// negative or above domain.MaxUnitPrice count as missing.
func coerceLine(m map[string]any) (domain.CartItem, bool, error) {
	pid, ok := productID(m)
	if !ok {
		return domain.CartItem{}, false, nil
	}

	qty, ok := firstNumber(m, quantityKeys)
	if !ok {
		return domain.CartItem{}, false, nil
	}
	qty = math.Trunc(qty)
	if qty <= 0 {
		return domain.CartItem{}, false, nil
	}
	if qty > domain.MaxLineQuantity {
		return domain.CartItem{}, false, &domain.ValidationError{
			Field:  "items",
			Reason: fmt.Sprintf("quantity %.0f exceeds %d", qty, domain.MaxLineQuantity),
		}
	}

	price, ok := firstNumber(m, unitPriceKeys)
	if !ok || price < 0 || price > domain.MaxUnitPrice {
		price = 0
	}

	return domain.CartItem{
		ProductID: pid,
		Quantity:  int(qty),
		UnitPrice: domain.Round2(price),
		Color:     firstString(m, colorKeys),
		Size:      firstString(m, sizeKeys),
		Title:     firstString(m, titleKeys),
		Image:     firstString(m, imageKeys),
	}, true, nil
}

func productID(m map[string]any) (primitive.ObjectID, bool) {
	for _, k := range productIDKeys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if id, ok := toObjectID(v); ok {
			return id, true
		}
	}
	return primitive.NilObjectID, false
}

func toObjectID(v any) (primitive.ObjectID, bool) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if len(s) != 24 {
			return primitive.NilObjectID, false
		}
		id, err := primitive.ObjectIDFromHex(strings.ToLower(s))
		if err != nil {
			return primitive.NilObjectID, false
		}
		return id, true
	case map[string]any:
		// extended JSON: {"$oid": "..."}
		if oid, ok := t["$oid"]; ok {
			return toObjectID(oid)
		}
	}
	return primitive.NilObjectID, false
}

type itemKey struct {
	productID primitive.ObjectID
	color     string
	size      string
}

// MergeItems folds lines sharing (product, color, size) into one item, keeping
// first-seen order. Quantities are summed. A missing price takes the other line's
// price; two positive prices that disagree keep the larger.
func MergeItems(lines []domain.CartItem) []domain.CartItem {
	index := make(map[itemKey]int, len(lines))
	merged := make([]domain.CartItem, 0, len(lines))

	for _, line := range lines {
		key := itemKey{productID: line.ProductID, color: line.Color, size: line.Size}
		i, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, line)
			continue
		}

		cur := &merged[i]
		cur.Quantity += line.Quantity
		cur.UnitPrice = mergePrice(cur.UnitPrice, line.UnitPrice)
		if cur.Title == "" {
			cur.Title = line.Title
		}
		if cur.Image == "" {
			cur.Image = line.Image
		}
	}

	return merged
}

func mergePrice(existing, incoming float64) float64 {
	switch {
	case existing <= 0:
		return incoming
	case incoming <= 0:
		return existing
	default:
		return math.Max(existing, incoming)
	}
}

func coerceAddress(m map[string]any) domain.Address {
	if m == nil {
		return domain.Address{}
	}
	return domain.Address{
		FirstName:  firstString(m, firstNameKeys),
		LastName:   firstString(m, lastNameKeys),
		Street:     firstString(m, streetKeys),
		City:       firstString(m, cityKeys),
		PostalCode: firstString(m, postalCodeKeys),
		Country:    firstString(m, countryKeys),
		Phone:      firstString(m, phoneKeys),
	}
}

func fieldError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is required"
		if fe.Tag() != "required" {
			reason = "is not a valid " + fe.Tag()
		}
		return &domain.ValidationError{Field: prefix + "." + lowerFirst(fe.Field()), Reason: reason}
	}
	return &domain.ValidationError{Field: prefix, Reason: err.Error()}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
