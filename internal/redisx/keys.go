package redisx

import "time"

const (
	// Session: session:{token} -> JSON orders.Session
	KeySession = "session:%s"

	// Session aktif per device: session:device:{device_id} -> token
	KeyDeviceSession = "session:device:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSession = 30 * 24 * time.Hour
	TTLDedup   = 48 * time.Hour
)
