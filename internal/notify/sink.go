package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level classifies a user-visible status event.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Event is one user-visible status notification. Every operation
// failure produces exactly one event; no operation fails silently.
type Event struct {
	Level   Level
	Message string
	At      time.Time
}

// Sink receives status events from the session, cache, submitter and
// scheduler. Rendering is up to the implementation.
type Sink interface {
	Publish(event Event)
}

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// ConsoleSink prints events to stdout and mirrors them into the
// structured log.
type ConsoleSink struct{}

func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

func (s *ConsoleSink) Publish(event Event) {
	color := colorCyan
	symbol := "·"
	switch event.Level {
	case LevelSuccess:
		color, symbol = colorGreen, "✓"
	case LevelError:
		color, symbol = colorRed, "✗"
	case LevelWarning:
		color, symbol = colorYellow, "~"
	}

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Printf("%s%s [%s] %s%s\n", color, symbol, at.Format("15:04:05"), event.Message, colorReset)

	switch event.Level {
	case LevelError:
		zap.L().Error("Notification", zap.String("message", event.Message))
	case LevelWarning:
		zap.L().Warn("Notification", zap.String("message", event.Message))
	default:
		zap.L().Info("Notification",
			zap.String("level", string(event.Level)),
			zap.String("message", event.Message))
	}
}

// MemorySink records events for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.At.IsZero() {
		event.At = time.Now()
	}
	s.events = append(s.events, event)
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// CountByLevel returns how many events of the given level were published.
func (s *MemorySink) CountByLevel(level Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset discards all recorded events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
