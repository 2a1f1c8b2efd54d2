// Package notify carries user-facing messages from the file view and the
// operation executor to whatever UI is attached.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level
	Title   string
	Message string
}

func (n Notification) String() string {
	if n.Message == "" {
		return n.Title
	}
	return fmt.Sprintf("%s: %s", n.Title, n.Message)
}

type Notifier interface {
	Notify(Notification)
}

func Info(n Notifier, title, msg string)    { n.Notify(Notification{LevelInfo, title, msg}) }
func Success(n Notifier, title, msg string) { n.Notify(Notification{LevelSuccess, title, msg}) }
func Warn(n Notifier, title, msg string)    { n.Notify(Notification{LevelWarn, title, msg}) }
func Error(n Notifier, title, msg string)   { n.Notify(Notification{LevelError, title, msg}) }

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger // nil means slog.Default()
}

func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"title", n.Title}
	if n.Message != "" {
		attrs = append(attrs, "message", n.Message)
	}

	switch n.Level {
	case LevelError:
		logger.Error("notify", attrs...)
	case LevelWarn:
		logger.Warn("notify", attrs...)
	default:
		logger.Info("notify", append(attrs, "level", string(n.Level))...)
	}
}

// Func adapts a plain function.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

const busBufferSize = 32

// Bus fans notifications out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the notification.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Notification
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Notification)}
}

// Subscribe returns a receive channel and a function that unsubscribes and
// closes it.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, busBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Bus) Notify(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			slog.Warn("notify bus buffer full", "subscriber", id, "title", n.Title)
		}
	}
}

// Close closes every subscriber channel. Later notifications are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Recorder keeps every notification; handy in tests and for batch commands
// that print a summary at the end.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.all {
		if x.Level == level {
			n++
		}
	}
	return n
}

// Multi sends to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
