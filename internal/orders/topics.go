package orders

const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderStatus      = "order.status.changed"
	TopicPaymentConfirmed = "order.payment.confirmed"
)

// Topics is every lifecycle topic, in publish order for one order.
var Topics = []string{TopicOrderPlaced, TopicOrderStatus, TopicPaymentConfirmed}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
