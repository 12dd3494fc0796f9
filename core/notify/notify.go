// Package notify delivers transient user-visible messages.
package notify

import (
	"sync"

	"genesis/logger"
)

// Notifier shows one short message to the user.
type Notifier interface {
	Notify(msg string)
}

// Func adapts a function to Notifier.
type Func func(msg string)

func (f Func) Notify(msg string) { f(msg) }

// Log writes messages to the application log.
type Log struct{}

func (Log) Notify(msg string) {
	logger.Info("notice", logger.String("message", msg))
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}

// Recorder keeps every message it receives.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *Recorder) Notify(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// Last returns the most recent message, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

// OrLog returns n, or Log when n is nil.
func OrLog(n Notifier) Notifier {
	if n == nil {
		return Log{}
	}
	return n
}
