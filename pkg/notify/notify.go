// Package notify provides the user-facing notification sink. The core never
// renders toasts itself; it reports outcomes here and an adapter decides how
// they reach the user.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Sink receives fire-and-forget notifications.
type Sink interface {
	Notify(kind Kind, title, description string)
}

// Notification is a single recorded notification.
type Notification struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ZapSink writes notifications to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink that logs to the given logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("notify")}
}

func (s *ZapSink) Notify(kind Kind, title, description string) {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("title", title),
		zap.String("description", description),
	}
	if kind == KindError {
		s.logger.Warn("User notification", fields...)
		return
	}
	s.logger.Info("User notification", fields...)
}

// RecordingSink keeps notifications in memory, newest last.
// Tests use it to check what the user was told.
type RecordingSink struct {
	mu      sync.Mutex
	entries []Notification
}

// NewRecordingSink creates an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Notify(kind Kind, title, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Notification{Kind: kind, Title: title, Description: description})
}

// Entries returns a copy of everything recorded so far.
func (s *RecordingSink) Entries() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.entries...)
}

// Drain returns and clears the recorded notifications.
func (s *RecordingSink) Drain() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.entries
	s.entries = nil
	return out
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(Kind, string, string) {}
