package orders

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderCancelled = "order.cancelled"
)

// Partition key = order code, so all events of one order keep their order.
func PartitionKey(code string) []byte { return []byte(code) }
