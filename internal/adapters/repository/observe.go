package repository

import (
	"errors"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// Observe records the latency of op since start. When errp points at a
// non-nil error other than a not-found kind, the operation is also counted
// as failed. Intended for defer with a named error result.
func Observe(op string, start time.Time, errp *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if errp == nil || *errp == nil {
		return
	}
	err := *errp
	if errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrSampleNotFound) || errors.Is(err, model.ErrEventNotFound) {
		return
	}
	metrics.RecordStoreError(op)
}
