package orders

// Status is opaque to the client; only the values below carry meaning there.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition is enforced by the backends' status update path. The store
// never changes a status itself.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
