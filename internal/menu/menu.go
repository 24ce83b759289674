// Package menu is the fixed catalog the app sells from.
package menu

import (
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/shopspring/decimal"
)

type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

var items = []Item{
	{
		ID:          "1",
		Name:        "Mie Ayam Original",
		Price:       decimal.NewFromInt(25000),
		Description: "Mie ayam dengan topping ayam cincang dan sayuran segar",
		Image:       "https://images.unsplash.com/photo-1612929633738-8fe44f7ec841?auto=format&fit=crop&w=800",
	},
	{
		ID:          "2",
		Name:        "Mie Ayam Spesial",
		Price:       decimal.NewFromInt(30000),
		Description: "Mie ayam dengan tambahan jamur, bakso, dan pangsit goreng",
		Image:       "https://images.unsplash.com/photo-1569718212165-3a8278d5f624?auto=format&fit=crop&w=800",
	},
	{
		ID:          "3",
		Name:        "Mie Ayam Pedas",
		Price:       decimal.NewFromInt(28000),
		Description: "Mie ayam dengan tambahan sambal dan cabe rawit",
		Image:       "https://images.unsplash.com/photo-1632467674545-57e8c77e4891?auto=format&fit=crop&w=800",
	},
}

// All returns a copy of the catalog.
func All() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func Find(id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// LineItem turns a menu entry into a cart entry.
func (it Item) LineItem() orders.LineItem {
	return orders.LineItem{
		ID:          it.ID,
		Name:        it.Name,
		Price:       it.Price,
		Image:       it.Image,
		Description: it.Description,
	}
}
