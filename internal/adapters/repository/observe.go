package repository

import (
	"time"

	"github.com/okian/predictor/pkg/metrics"
)

// observe records latency for op and counts err when set. Use with defer:
//
//	defer observe(BackendMemory, "list_users", time.Now(), &err)
func observe(backend, op string, start time.Time, err *error) {
	metrics.RecordStoreLatency(backend, op, time.Since(start).Seconds())
	if err != nil && *err != nil {
		metrics.RecordStoreError(backend, op)
	}
}
