package orders

import (
	"bytes"
	"encoding/json"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/shopspring/decimal"
)

// Items is an order's item snapshot. The hosted table stores it either as a
// JSON array or as a string holding that array; both decode to the same value.
type Items []LineItem

// DecodeItems resolves a raw items column. null and empty input give an empty
// list; anything that is neither an array nor a string containing one is a
// parse error.
func DecodeItems(raw []byte) (Items, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Items{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Items{}, apperr.Parse("malformed item snapshot", err)
		}
		return DecodeItems([]byte(s))
	}
	var out []LineItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return Items{}, apperr.Parse("malformed item snapshot", err)
	}
	if out == nil {
		out = []LineItem{}
	}
	return Items(out), nil
}

// UnmarshalJSON never fails: a malformed snapshot becomes an empty list.
func (it *Items) UnmarshalJSON(b []byte) error {
	v, _ := DecodeItems(b)
	*it = v
	return nil
}

func (it Items) Names() []string {
	out := make([]string, 0, len(it))
	for _, li := range it {
		out = append(out, li.Name)
	}
	return out
}

func (it Items) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range it {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (it Items) Count() int {
	n := 0
	for _, li := range it {
		n += li.Quantity
	}
	return n
}

func (it Items) Clone() Items {
	if it == nil {
		return nil
	}
	out := make(Items, len(it))
	copy(out, it)
	return out
}
