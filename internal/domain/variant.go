package domain

import "strings"

// Selection is the color/size a cart line asks for. Empty fields are unspecified.
type Selection struct {
	Color string
	Size  string
}

func (s Selection) IsEmpty() bool {
	return s.Color == "" && s.Size == ""
}

// ResolvedVariant is the outcome of matching a selection against a product.
// Bucket is nil in flat-stock mode.
type ResolvedVariant struct {
	Bucket    *Variant
	Available int
}

// IsFlat reports whether stock comes from the product's flat count.
func (r ResolvedVariant) IsFlat() bool {
	return r.Bucket == nil
}

// ResolveVariant finds the bucket matching sel.
//
// Products without buckets resolve to flat-stock mode regardless of the selection.
// With buckets, every specified attribute must match case-insensitively and the first
// matching bucket wins. A selection that specifies nothing cannot pick a bucket and
// fails with ErrVariantUnresolved, as does a selection no bucket satisfies.
func ResolveVariant(p *Product, sel Selection) (ResolvedVariant, error) {
	if !p.HasVariants() {
		return ResolvedVariant{Available: p.FlatStock()}, nil
	}
	if sel.IsEmpty() {
		return ResolvedVariant{}, ErrVariantUnresolved
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if sel.Color != "" && !strings.EqualFold(strings.TrimSpace(v.Color), sel.Color) {
			continue
		}
		if sel.Size != "" && !strings.EqualFold(strings.TrimSpace(v.Size), sel.Size) {
			continue
		}
		return ResolvedVariant{Bucket: v, Available: v.Stock}, nil
	}

	return ResolvedVariant{}, ErrVariantUnresolved
}
