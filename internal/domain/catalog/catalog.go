// Package catalog builds the enrolled-identity set a query is matched against.
package catalog

import (
	"context"

	"github.com/okian/rollcall/internal/domain/model"
)

// Source is the subset of the store a catalog is loaded from.
type Source interface {
	LoadEnrollments(ctx context.Context, scope string) ([]model.EnrollmentSample, error)
	EnrollmentRevision(ctx context.Context) (int64, error)
}

// Loader returns the catalog for a scope.
type Loader interface {
	Load(ctx context.Context, scope string) (Catalog, error)
}

// Catalog is an immutable snapshot of the samples visible to one scope.
type Catalog struct {
	scope      string
	revision   int64
	samples    []model.EnrollmentSample
	identities []model.Identity
}

// New groups samples by identity, preserving first-appearance order.
func New(scope string, revision int64, samples []model.EnrollmentSample) Catalog {
	index := make(map[string]int)
	identities := make([]model.Identity, 0)
	for _, s := range samples {
		i, ok := index[s.ExternalID]
		if !ok {
			i = len(identities)
			index[s.ExternalID] = i
			identities = append(identities, model.Identity{ExternalID: s.ExternalID, DisplayName: s.DisplayName})
		}
		identities[i].Samples = append(identities[i].Samples, s)
	}
	return Catalog{scope: scope, revision: revision, samples: samples, identities: identities}
}

// Scope returns the scope the catalog was loaded for.
func (c Catalog) Scope() string { return c.scope }

// Revision returns the enrollment revision the snapshot reflects.
func (c Catalog) Revision() int64 { return c.revision }

// Samples returns every sample. The slice must not be modified.
func (c Catalog) Samples() []model.EnrollmentSample { return c.samples }

// Identities returns samples grouped by identity.
func (c Catalog) Identities() []model.Identity { return c.identities }

// Len returns the sample count.
func (c Catalog) Len() int { return len(c.samples) }

// Empty reports whether nothing is enrolled for the scope.
func (c Catalog) Empty() bool { return len(c.samples) == 0 }

// Direct loads a fresh catalog from the source on every call.
type Direct struct {
	src Source
}

// NewDirect returns an uncached loader.
func NewDirect(src Source) *Direct { return &Direct{src: src} }

// Load reads the scope's samples.
func (d *Direct) Load(ctx context.Context, scope string) (Catalog, error) {
	rev, err := d.src.EnrollmentRevision(ctx)
	if err != nil {
		return Catalog{}, err
	}
	samples, err := d.src.LoadEnrollments(ctx, scope)
	if err != nil {
		return Catalog{}, err
	}
	return New(scope, rev, samples), nil
}
