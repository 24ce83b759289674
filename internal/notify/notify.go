// Package notify derives the user-facing notification feed from orders.
// Nothing here is stored: the feed is recomputed from the order list on every
// call.
package notify

import (
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-app/internal/orders"
)

type Kind string

const (
	KindReceived   Kind = "created"
	KindProcessing Kind = "processing"
	KindDelivered  Kind = "delivered"
)

var titles = map[Kind]string{
	KindReceived:   "Order received",
	KindProcessing: "Order being processed",
	KindDelivered:  "Order completed",
}

type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Date    string    `json:"date"`
	At      time.Time `json:"at"`
	OrderID string    `json:"order_id"`
}

const DefaultLayout = "02 Jan 2006 15:04"

type options struct {
	layout string
	loc    *time.Location
}

type Option func(*options)

// WithLayout sets the time layout used for Notification.Date.
func WithLayout(layout string) Option {
	return func(o *options) {
		if layout != "" {
			o.layout = layout
		}
	}
}

// WithLocation sets the zone dates are displayed in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// Project builds the feed: one "received" entry per order, plus one status
// entry when the order is processing or delivered. The result is sorted by
// creation time, newest first; entries with equal times keep generation
// order, so an order's "received" entry precedes its status entry.
func Project(list []orders.Order, opts ...Option) []Notification {
	o := options{layout: DefaultLayout, loc: time.Local}
	for _, fn := range opts {
		fn(&o)
	}

	out := make([]Notification, 0, 2*len(list))
	for _, ord := range list {
		msg := strings.Join(ord.Items.Names(), ", ")
		date := ord.CreatedAt.In(o.loc).Format(o.layout)

		out = append(out, entry(ord, KindReceived, msg, date))
		switch ord.Status {
		case orders.StatusProcessing:
			out = append(out, entry(ord, KindProcessing, msg, date))
		case orders.StatusDelivered:
			out = append(out, entry(ord, KindDelivered, msg, date))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out
}

func entry(ord orders.Order, kind Kind, msg, date string) Notification {
	return Notification{
		ID:      ord.ID + "-" + string(kind),
		Kind:    kind,
		Title:   titles[kind],
		Message: msg,
		Date:    date,
		At:      ord.CreatedAt,
		OrderID: ord.ID,
	}
}
