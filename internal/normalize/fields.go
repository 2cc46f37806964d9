package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Candidate keys, in priority order. Dotted keys descend into nested objects.
var (
	cartKeys           = []string{"items", "cartItems", "cart", "lineItems", "products"}
	productIDKeys      = []string{"productId", "product_id", "_id", "id"}
	quantityKeys       = []string{"quantity", "qty"}
	unitPriceKeys      = []string{"unitPrice", "price"}
	colorKeys          = []string{"color", "selectedColor", "variant.color"}
	sizeKeys           = []string{"size", "selectedSize", "variant.size"}
	titleKeys          = []string{"title", "name"}
	imageKeys          = []string{"image", "imageUrl", "thumbnail"}
	shippingOptionKeys = []string{"shippingOption", "shippingMethod", "shipping.option", "shipping.method"}
	shippingAmountKeys = []string{"shippingAmount", "shippingCost", "shipping.amount"}
	emailKeys          = []string{"contact.email", "email", "customer.email"}
	phoneKeys          = []string{"contact.phone", "phone"}
	addressKeys        = []string{"shippingAddress", "shipping.address", "address"}
	customerIDKeys     = []string{"customerId", "userId"}
	notesKeys          = []string{"notes", "note"}
	submittedAtKeys    = []string{"metadata.submittedAt", "metadata.timestamp", "submittedAt"}
	originKeys         = []string{"metadata.origin", "origin"}
	sourceKeys         = []string{"metadata.source", "source"}

	firstNameKeys  = []string{"firstName", "first_name"}
	lastNameKeys   = []string{"lastName", "last_name"}
	streetKeys     = []string{"street", "address1", "line1"}
	cityKeys       = []string{"city"}
	postalCodeKeys = []string{"postalCode", "zip", "postcode"}
	countryKeys    = []string{"country"}
)

// lookup returns the value at path, following dots through nested objects.
func lookup(m map[string]any, path string) (any, bool) {
	cur := m
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok || v == nil {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// firstString returns the first candidate that coerces to a non-empty trimmed string.
func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if s := toString(v); s != "" {
			return s
		}
	}
	return ""
}

// firstNumber returns the first candidate that coerces to a finite number.
func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if f, ok := toNumber(v); ok {
			return f, true
		}
	}
	return 0, false
}

func firstObject(m map[string]any, keys []string) map[string]any {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
			return obj
		}
	}
	return nil
}

// firstList returns the first candidate holding a non-empty list.
func firstList(m map[string]any, keys []string) []any {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		if list, ok := v.([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
