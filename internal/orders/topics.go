package orders

const (
	TopicSession            = "auth.session"
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
)

// Partition key: device_id untuk event session, order_id untuk event order,
// supaya urutan per key terjaga.
func PartitionKey(id string) []byte { return []byte(id) }
