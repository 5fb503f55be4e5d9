package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{Idempotency-Key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cached order document: order:{order_id} -> JSON order
	KeyOrder = "order:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
