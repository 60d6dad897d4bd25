// Package scancheck is a concurrent end-to-end verifier for a running
// attendance service. It enrolls synthetic identities, floods one session
// with recognitions from many workers and checks that every identity was
// recorded exactly once.
package scancheck

import (
	"errors"
	"fmt"
	"time"
)

// Defaults used when a Config field is left zero.
const (
	DefaultBaseURL    = "http://localhost:9080"
	DefaultIdentities = 20
	DefaultWorkers    = 8
	DefaultRepeats    = 3
	DefaultDimension  = 128
	DefaultTimeout    = 10 * time.Second
)

// ErrInvalidConfig is returned for a config that cannot drive a run.
var ErrInvalidConfig = errors.New("invalid scan-check config")

// ErrVerification is returned when the service breaks the at-most-once guarantee.
var ErrVerification = errors.New("scan-check verification failed")

// Config holds the parameters of one run.
type Config struct {
	BaseURL    string        // base URL of the service
	Identities int           // synthetic identities to enroll (N)
	Workers    int           // concurrent submitters (W)
	Repeats    int           // submissions of every identity per worker (R)
	Dimension  int           // embedding dimension of the service (D)
	Scope      string        // session scope; generated when empty
	Timeout    time.Duration // per-request HTTP timeout
	Cleanup    bool          // delete the synthetic enrollments afterwards
	// Progress, when set, is called once per finished recognition from the
	// submitting goroutines.
	Progress func()
}

// Submissions is the total number of recognitions a run sends.
func (c Config) Submissions() int { return c.Identities * c.Workers * c.Repeats }

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Identities == 0 {
		c.Identities = DefaultIdentities
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Repeats == 0 {
		c.Repeats = DefaultRepeats
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultDimension
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) validate() error {
	switch {
	case c.Identities < 0:
		return fmt.Errorf("%w: identities must be positive", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Repeats < 0:
		return fmt.Errorf("%w: repeats must be positive", ErrInvalidConfig)
	case c.Dimension < 0:
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Report holds the counts observed during a run.
type Report struct {
	Identities   int
	Submitted    int
	Recorded     int
	Duplicate    int
	Unrecognized int
	Mismatched   int // recognized as a different identity
	Failed       int // transport errors and unexpected statuses
	Attendance   int // events listed for the session afterwards
	SessionID    string
	Duration     time.Duration
}

// ExpectedDuplicates is the number of duplicate outcomes a correct service reports.
func (r Report) ExpectedDuplicates() int { return r.Submitted - r.Identities }
