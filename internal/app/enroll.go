package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// EnrollRequest registers one photo of a person.
type EnrollRequest struct {
	ExternalID  string
	DisplayName string
	// Scope restricts the sample to sessions of that scope; empty means all.
	Scope string
	// Faces holds one embedding per detected face. Exactly one is required.
	Faces [][]float32
}

// Enroll validates and stores one enrollment sample.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (model.EnrollmentSample, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	name := strings.TrimSpace(req.DisplayName)

	switch {
	case externalID == "":
		return model.EnrollmentSample{}, fmt.Errorf("%w: external id is required", ErrInvalidRequest)
	case name == "":
		return model.EnrollmentSample{}, fmt.Errorf("%w: display name is required", ErrInvalidRequest)
	case len(req.Faces) != 1:
		return model.EnrollmentSample{}, fmt.Errorf("%w: got %d", ErrFaceCount, len(req.Faces))
	}

	emb := model.Embedding(req.Faces[0]).Clone()
	if emb.Dim() != s.dimension {
		return model.EnrollmentSample{}, model.DimensionMismatch("service.enroll", s.dimension, emb.Dim())
	}
	if !emb.Finite() {
		return model.EnrollmentSample{}, model.NewKind("service.enroll", model.ErrInvalidSample)
	}

	sample := model.EnrollmentSample{
		SampleID:    s.newID(),
		ExternalID:  externalID,
		DisplayName: name,
		Embedding:   emb,
		Scope:       strings.TrimSpace(req.Scope),
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateEnrollment(ctx, sample); err != nil {
		return model.EnrollmentSample{}, err
	}

	s.counts.enrollments.Add(1)
	metrics.RecordEnrollment()
	s.logger.Info(ctx, "enrolled sample",
		logger.String("sample_id", sample.SampleID),
		logger.String("external_id", sample.ExternalID),
		logger.String("scope", sample.Scope),
	)
	return sample, nil
}

// Unenroll deletes one sample.
func (s *Service) Unenroll(ctx context.Context, sampleID string) error {
	if err := s.store.DeleteEnrollment(ctx, sampleID); err != nil {
		return err
	}
	s.counts.unenrollments.Add(1)
	metrics.RecordEnrollmentDeletion()
	s.logger.Info(ctx, "deleted sample", logger.String("sample_id", sampleID))
	return nil
}

// ListEnrollments lists samples of scope; empty scope lists all.
func (s *Service) ListEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error) {
	return s.store.ListEnrollments(ctx, strings.TrimSpace(scope))
}
