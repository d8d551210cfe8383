package notify

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// LogNotifier renders notifications as console log lines.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier writes human-readable notifications to w.
func NewLogNotifier(w io.Writer) *LogNotifier {
	return &LogNotifier{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: w, PartsExclude: []string{zerolog.TimestampFieldName}}),
	}
}

func (n *LogNotifier) Success(title, description string) {
	n.logger.Info().Str("description", description).Msg(title)
}

func (n *LogNotifier) Error(title, description string) {
	n.logger.Error().Str("description", description).Msg(title)
}

// Level of a recorded notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one recorded message.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(title, description string) {
	r.add(Notification{Level: LevelSuccess, Title: title, Description: description})
}

func (r *Recorder) Error(title, description string) {
	r.add(Notification{Level: LevelError, Title: title, Description: description})
}

func (r *Recorder) add(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Errors returns only the error notifications.
func (r *Recorder) Errors() []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}
