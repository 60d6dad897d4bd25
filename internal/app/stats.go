package service

import (
	"context"
	"time"
)

// GetStats returns service counters and store totals.
func (s *Service) GetStats(ctx context.Context) (map[string]any, error) {
	samples, err := s.store.ListEnrollments(ctx, "")
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	rev, err := s.store.EnrollmentRevision(ctx)
	if err != nil {
		return nil, err
	}

	identities := make(map[string]struct{}, len(samples))
	for _, sm := range samples {
		identities[sm.ExternalID] = struct{}{}
	}

	return map[string]any{
		"enrollment_samples":  len(samples),
		"identities":          len(identities),
		"sessions":            len(sessions),
		"enrollment_revision": rev,
		"embedding_dim":       s.dimension,
		"match_threshold":     s.matcher.Threshold(),
		"normalize":           s.matcher.Normalizes(),
		"catalog_cache":       s.cacheCatalog,
		"recognitions": map[string]int64{
			string(StatusRecorded):         s.counts.recorded.Load(),
			string(StatusDuplicate):        s.counts.duplicate.Load(),
			string(StatusUnrecognized):     s.counts.unrecognized.Load(),
			string(StatusNoEnrollment):     s.counts.noEnrollment.Load(),
			string(StatusInvalidFaceCount): s.counts.invalidFaces.Load(),
		},
		"enrollments_created": s.counts.enrollments.Load(),
		"enrollments_deleted": s.counts.unenrollments.Load(),
		"uptime_seconds":      int64(s.now().Sub(s.started) / time.Second),
	}, nil
}
