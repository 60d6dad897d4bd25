// Package matching resolves a query embedding to at most one enrolled identity.
//
// Distances are Euclidean. When normalization is enabled both the query and
// every sample are scaled to unit length first, so distances fall in [0, 2]
// and the threshold is expressed in those units. Without normalization the
// threshold is in the raw units of the embedding model.
package matching

import (
	"math"

	"github.com/okian/rollcall/internal/domain/model"
)

// Default matcher configuration constants.
const (
	defaultThreshold = 1.0
	defaultNormalize = true
)

// Result describes the best candidate found for a query.
type Result struct {
	ExternalID  string
	DisplayName string
	Distance    float64 // minimum distance of the best identity; +Inf when the catalog is empty
	Matched     bool    // Distance < threshold
	Identities  int     // number of identities considered
}

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithThreshold sets the exclusive acceptance bound. Non-positive or NaN values are ignored.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && !math.IsNaN(threshold) {
			m.threshold = threshold
		}
	}
}

// WithNormalize toggles unit-length normalization before distance computation.
func WithNormalize(enabled bool) Option {
	return func(m *Matcher) {
		m.normalize = enabled
	}
}

// Matcher holds the threshold and normalization convention. It is immutable
// after construction and safe for concurrent use.
type Matcher struct {
	threshold float64
	normalize bool
}

// NewMatcher creates a matcher with configuration options.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: defaultThreshold,
		normalize: defaultNormalize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the exclusive acceptance bound.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Normalizes reports whether embeddings are unit-normalized before comparison.
func (m *Matcher) Normalizes() bool { return m.normalize }

// Match finds the identity whose closest sample is nearest to query.
//
// Samples are grouped by ExternalID; each identity scores the minimum distance
// over its samples and the identity with the global minimum wins. Equal minima
// resolve to the identity that appears first in samples. A match is reported
// only when that minimum is strictly below the threshold.
//
// Every sample must have the same dimension as query; otherwise
// model.ErrDimensionMismatch is returned and nothing is matched. A sample whose
// distance is NaN never matches.
func (m *Matcher) Match(query model.Embedding, samples []model.EnrollmentSample) (Result, error) {
	res := Result{Distance: math.Inf(1)}
	if len(samples) == 0 {
		return res, nil
	}
	for _, s := range samples {
		if len(s.Embedding) != len(query) {
			return res, model.DimensionMismatch("matching.match", len(s.Embedding), len(query))
		}
	}

	q := query
	if m.normalize {
		q = Normalize(query)
	}

	type candidate struct {
		externalID  string
		displayName string
		best        float64
	}
	order := make([]*candidate, 0, len(samples))
	byID := make(map[string]*candidate, len(samples))

	for _, s := range samples {
		var d float64
		if m.normalize {
			d = normalizedDistance(q, s.Embedding)
		} else {
			d = Distance(q, s.Embedding)
		}
		// A non-finite component would poison every comparison below.
		if math.IsNaN(d) {
			d = math.Inf(1)
		}
		c, ok := byID[s.ExternalID]
		if !ok {
			c = &candidate{externalID: s.ExternalID, displayName: s.DisplayName, best: d}
			byID[s.ExternalID] = c
			order = append(order, c)
			continue
		}
		if d < c.best {
			c.best = d
		}
	}

	var winner *candidate
	for _, c := range order {
		if winner == nil || c.best < winner.best {
			winner = c
		}
	}

	res.ExternalID = winner.externalID
	res.DisplayName = winner.displayName
	res.Distance = winner.best
	res.Identities = len(order)
	res.Matched = winner.best < m.threshold
	if !res.Matched {
		res.ExternalID, res.DisplayName = "", ""
	}
	return res, nil
}
