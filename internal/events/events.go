package events

import (
	"context"
	"sync"
	"time"
)

const (
	SubjectMarketCreated       = "ppplay.market.created"
	SubjectMarketApproved      = "ppplay.market.approved"
	SubjectMarketRejected      = "ppplay.market.rejected"
	SubjectMarketSettled       = "ppplay.market.settled"
	SubjectMarketDeleted       = "ppplay.market.deleted"
	SubjectMarketClosed        = "ppplay.market.closed"
	SubjectPredictionCreated   = "ppplay.prediction.created"
	SubjectNotificationCreated = "ppplay.notification.created"
	SubjectAttendanceCheckedIn = "ppplay.attendance.checked_in"
)

// Subjects lists every subject the event stream captures
var Subjects = []string{"ppplay.market.*", "ppplay.prediction.*", "ppplay.notification.*", "ppplay.attendance.*"}

// Event is the envelope published for every domain change
type Event struct {
	Subject    string                 `json:"subject"`
	UserID     uint                   `json:"user_id,omitempty"`
	MarketID   uint                   `json:"market_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher fans domain events out to other consumers. Publishing happens
// after the owning transaction commits and never fails the request.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Subjects returns the subjects published so far, in order
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Subject)
	}
	return out
}
