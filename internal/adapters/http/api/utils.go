package api

import (
	"math"
	"time"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
)

// Wire shapes shared by the handlers. Embeddings are never echoed back.

type sampleResponse struct {
	SampleID    string `json:"sample_id"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Scope       string `json:"scope"`
	CreatedAt   string `json:"created_at"`
}

type sessionResponse struct {
	SessionID        string `json:"session_id"`
	ScopeKey         string `json:"scope_key"`
	Date             string `json:"date"`
	Start            string `json:"start"`
	End              string `json:"end"`
	LateGraceMinutes int    `json:"late_grace_minutes"`
	MaxScore         int    `json:"max_score"`
	CreatedAt        string `json:"created_at"`
}

type eventResponse struct {
	EventID     string `json:"event_id"`
	SessionID   string `json:"session_id"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name,omitempty"`
	Timestamp   string `json:"timestamp"`
	Score       int    `json:"score"`
	Note        string `json:"note"`
}

type recognitionResponse struct {
	Status      string `json:"status"`
	ExternalID  string `json:"external_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	// Distance is omitted when nothing was compared.
	Distance  *float64       `json:"distance,omitempty"`
	Threshold float64        `json:"threshold"`
	FaceCount int            `json:"face_count"`
	Event     *eventResponse `json:"event,omitempty"`
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}

func toSample(s model.EnrollmentSample, loc *time.Location) sampleResponse {
	return sampleResponse{
		SampleID:    s.SampleID,
		ExternalID:  s.ExternalID,
		DisplayName: s.DisplayName,
		Scope:       s.Scope,
		CreatedAt:   formatTime(s.CreatedAt, loc),
	}
}

func toSession(w model.SessionWindow, loc *time.Location) sessionResponse {
	return sessionResponse{
		SessionID:        w.SessionID,
		ScopeKey:         w.ScopeKey,
		Date:             w.Start.In(loc).Format(time.DateOnly),
		Start:            formatTime(w.Start, loc),
		End:              formatTime(w.End, loc),
		LateGraceMinutes: int(w.LateGrace / time.Minute),
		MaxScore:         w.MaxScore,
		CreatedAt:        formatTime(w.CreatedAt, loc),
	}
}

func toEvent(ev model.AttendanceEvent, name string, loc *time.Location) eventResponse {
	return eventResponse{
		EventID:     ev.EventID,
		SessionID:   ev.SessionID,
		ExternalID:  ev.ExternalID,
		DisplayName: name,
		Timestamp:   ev.Timestamp.In(loc).Format(time.RFC3339Nano),
		Score:       ev.Score,
		Note:        ev.Note.String(),
	}
}

func toRecognition(res service.Result, loc *time.Location) recognitionResponse {
	out := recognitionResponse{
		Status:      string(res.Status),
		ExternalID:  res.ExternalID,
		DisplayName: res.DisplayName,
		Threshold:   res.Threshold,
		FaceCount:   res.FaceCount,
	}
	if !math.IsInf(res.Distance, 0) && !math.IsNaN(res.Distance) {
		d := res.Distance
		out.Distance = &d
	}
	if res.Event != nil {
		ev := toEvent(*res.Event, res.DisplayName, loc)
		out.Event = &ev
	}
	return out
}
