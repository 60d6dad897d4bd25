package scancheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rollcall/pkg/logger"
)

// Run executes one scan check against cfg.BaseURL.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Scope == "" {
		cfg.Scope = "scancheck-" + uuid.NewString()[:8]
	}

	start := time.Now()
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	log.Info(ctx, "starting scan check",
		logger.String("base_url", cfg.BaseURL),
		logger.String("scope", cfg.Scope),
		logger.Int("identities", cfg.Identities),
		logger.Int("workers", cfg.Workers),
		logger.Int("repeats", cfg.Repeats),
		logger.Int("dimension", cfg.Dimension),
	)

	// Step 1: Check service health
	if err := client.expect(ctx, http.StatusOK, http.MethodGet, "/healthz", nil, nil); err != nil {
		return Report{}, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Enroll synthetic identities
	ids := generateIdentities(cfg.Identities, cfg.Dimension)
	if err := enrollAll(ctx, client, cfg.Scope, ids); err != nil {
		return Report{}, fmt.Errorf("enrollment failed: %w", err)
	}
	if cfg.Cleanup {
		defer cleanup(context.WithoutCancel(ctx), client, ids, log)
	}

	// Step 3: Create a session spanning the whole day
	session, at, err := createSession(ctx, client, cfg.Scope)
	if err != nil {
		return Report{}, fmt.Errorf("session creation failed: %w", err)
	}

	// Step 4: Flood the session concurrently
	report := submitAll(ctx, client, cfg, session, at, ids)
	report.Identities = len(ids)
	report.SessionID = session

	// Step 5: Read the attendance list back
	var events []eventResponse
	if err := client.expect(ctx, http.StatusOK, http.MethodGet, "/sessions/"+url.PathEscape(session)+"/attendance", nil, &events); err != nil {
		return report, fmt.Errorf("attendance retrieval failed: %w", err)
	}
	report.Attendance = len(events)
	report.Duration = time.Since(start)

	// Step 6: Verify results
	verr := verify(report, ids, events)
	log.Info(ctx, "scan check finished",
		logger.String("session_id", session),
		logger.Int("submitted", report.Submitted),
		logger.Int("recorded", report.Recorded),
		logger.Int("duplicate", report.Duplicate),
		logger.Int("unrecognized", report.Unrecognized),
		logger.Int("mismatched", report.Mismatched),
		logger.Int("failed", report.Failed),
		logger.Int("attendance", report.Attendance),
		logger.Duration("duration", report.Duration),
		logger.Bool("ok", verr == nil),
	)
	return report, verr
}

func enrollAll(ctx context.Context, client *httpClient, scope string, ids []identity) error {
	for i := range ids {
		var sample sampleResponse
		err := client.expect(ctx, http.StatusCreated, http.MethodPost, "/enrollments", enrollRequest{
			ExternalID:  ids[i].ExternalID,
			DisplayName: ids[i].Name,
			Scope:       scope,
			Embedding:   ids[i].Embedding,
		}, &sample)
		if err != nil {
			return err
		}
		ids[i].SampleID = sample.SampleID
	}
	return nil
}

// createSession returns the session id and an RFC3339 instant inside its window.
func createSession(ctx context.Context, client *httpClient, scope string) (string, string, error) {
	var out sessionResponse
	err := client.expect(ctx, http.StatusCreated, http.MethodPost, "/sessions", sessionRequest{
		ScopeKey:  scope,
		Date:      time.Now().Format(time.DateOnly),
		StartTime: "00:00",
		EndTime:   "23:59",
	}, &out)
	if err != nil {
		return "", "", err
	}
	start, err := time.Parse(time.RFC3339, out.Start)
	if err != nil {
		return "", "", fmt.Errorf("session start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, out.End)
	if err != nil {
		return "", "", fmt.Errorf("session end: %w", err)
	}
	mid := start.Add(end.Sub(start) / 2)
	return out.SessionID, mid.Format(time.RFC3339), nil
}

// submitAll has every worker submit every identity cfg.Repeats times.
func submitAll(ctx context.Context, client *httpClient, cfg Config, session, at string, ids []identity) Report {
	var (
		submitted, recorded, duplicate int64
		unrecognized, mismatched       int64
		failed                         int64
	)
	path := "/sessions/" + url.PathEscape(session) + "/recognitions"

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for r := 0; r < cfg.Repeats; r++ {
				for k := range ids {
					if ctx.Err() != nil {
						return
					}
					// Rotate the order per worker so identities collide across workers.
					id := ids[(k+worker)%len(ids)]
					atomic.AddInt64(&submitted, 1)

					var res recognitionResponse
					code, err := client.do(ctx, http.MethodPost, path, recognizeRequest{
						Faces:     [][]float32{id.Embedding},
						Timestamp: at,
					}, &res)
					switch {
					case err != nil:
						atomic.AddInt64(&failed, 1)
					case res.Status == "unrecognized":
						atomic.AddInt64(&unrecognized, 1)
					case res.ExternalID != id.ExternalID:
						atomic.AddInt64(&mismatched, 1)
					case code == http.StatusCreated && res.Status == "recorded":
						atomic.AddInt64(&recorded, 1)
					case code == http.StatusOK && res.Status == "duplicate":
						atomic.AddInt64(&duplicate, 1)
					default:
						atomic.AddInt64(&failed, 1)
					}
					if cfg.Progress != nil {
						cfg.Progress()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	return Report{
		Submitted:    int(atomic.LoadInt64(&submitted)),
		Recorded:     int(atomic.LoadInt64(&recorded)),
		Duplicate:    int(atomic.LoadInt64(&duplicate)),
		Unrecognized: int(atomic.LoadInt64(&unrecognized)),
		Mismatched:   int(atomic.LoadInt64(&mismatched)),
		Failed:       int(atomic.LoadInt64(&failed)),
	}
}

func cleanup(ctx context.Context, client *httpClient, ids []identity, log logger.Logger) {
	for _, id := range ids {
		if id.SampleID == "" {
			continue
		}
		if err := client.expect(ctx, http.StatusNoContent, http.MethodDelete, "/enrollments/"+url.PathEscape(id.SampleID), nil, nil); err != nil {
			log.Warn(ctx, "failed to delete synthetic enrollment", logger.String("sample_id", id.SampleID), logger.Error(err))
		}
	}
}

// verify checks the report and attendance list against the at-most-once guarantee.
func verify(r Report, ids []identity, events []eventResponse) error {
	var errs []error
	if r.Recorded != r.Identities {
		errs = append(errs, fmt.Errorf("recorded %d, want %d", r.Recorded, r.Identities))
	}
	if r.Duplicate != r.ExpectedDuplicates() {
		errs = append(errs, fmt.Errorf("duplicate %d, want %d", r.Duplicate, r.ExpectedDuplicates()))
	}
	if r.Unrecognized+r.Mismatched+r.Failed > 0 {
		errs = append(errs, fmt.Errorf("%d unrecognized, %d mismatched, %d failed", r.Unrecognized, r.Mismatched, r.Failed))
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id.ExternalID] = true
	}
	seen := make(map[string]int, len(events))
	for _, ev := range events {
		seen[ev.ExternalID]++
	}
	for ext, n := range seen {
		switch {
		case !want[ext]:
			errs = append(errs, fmt.Errorf("unexpected identity %s in attendance", ext))
		case n != 1:
			errs = append(errs, fmt.Errorf("identity %s recorded %d times", ext, n))
		}
	}
	for ext := range want {
		if seen[ext] == 0 {
			errs = append(errs, fmt.Errorf("identity %s missing from attendance", ext))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
	}
	return nil
}
