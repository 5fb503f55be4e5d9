package orders

const (
	TopicOrderCreated       = "coffee.order.created"
	TopicOrderStatusChanged = "coffee.order.status_changed"
	TopicStockAdjusted      = "coffee.stock.adjusted"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
