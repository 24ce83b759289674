// Package cart holds the in-memory cart: product id to quantity, in the order
// products were first added.
//
// A Ledger is not safe for concurrent use; the store serializes access.
package cart

import (
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	items []orders.LineItem
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Add puts one more unit of item in the cart. The quantity on item is ignored.
func (l *Ledger) Add(item orders.LineItem) {
	if i := l.index(item.ID); i >= 0 {
		l.items[i].Quantity++
		return
	}
	item.Quantity = 1
	l.items = append(l.items, item)
}

// Remove deletes the entry for id. Missing ids are ignored.
func (l *Ledger) Remove(id string) {
	i := l.index(id)
	if i < 0 {
		return
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
}

// UpdateQuantity sets the quantity for id. Quantities below 1 are refused
// rather than removing the entry; an unknown id is ignored. It reports
// whether anything changed.
func (l *Ledger) UpdateQuantity(id string, quantity int) bool {
	if quantity < 1 {
		return false
	}
	i := l.index(id)
	if i < 0 || l.items[i].Quantity == quantity {
		return false
	}
	l.items[i].Quantity = quantity
	return true
}

func (l *Ledger) Clear() {
	l.items = nil
}

// Items returns a copy of the entries in insertion order.
func (l *Ledger) Items() orders.Items {
	out := make(orders.Items, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Total() decimal.Decimal {
	return orders.Items(l.items).Total()
}

// Count is the number of units across all entries.
func (l *Ledger) Count() int {
	return orders.Items(l.items).Count()
}

func (l *Ledger) Len() int { return len(l.items) }
