package diagnostics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// MessageDelegate receives one composed diagnostic message. senderName
// identifies the Bus that published it; level is its severity; message
// is the final text, already prefixed with any pushed context frames.
//
// A MessageDelegate must never panic: Publish treats a delegate as
// having received the message the instant it is called, regardless of
// what the delegate does afterward, so a panicking subscriber cannot
// be "un-delivered to". Bus itself does not recover from a subscriber
// panic; wrap a delegate that might panic before subscribing it.
type MessageDelegate func(senderName string, level Level, message string)

// Unsubscribe removes exactly the subscription it was returned for.
// Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id       uint64
	delegate MessageDelegate
	minLevel Level
}

// Bus is a named publisher with per-subscriber minimum-level filtering
// and a contextual prefix stack. The zero value is not ready for use;
// construct one with New.
type Bus struct {
	name string

	mu      sync.Mutex
	subs    []subscription
	nextID  uint64
	context []string
}

// New creates a Bus that identifies itself as name in every message it
// publishes.
func New(name string) *Bus {
	return &Bus{name: name}
}

// Name returns the sender name this bus publishes under.
func (b *Bus) Name() string { return b.name }

// Subscribe registers delegate to receive every message published at
// or above minLevel, in the order it is received. The returned
// Unsubscribe removes exactly this subscription and is idempotent.
func (b *Bus) Subscribe(delegate MessageDelegate, minLevel Level) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, delegate: delegate, minLevel: minLevel})
	b.mu.Unlock()

	var removed atomic.Bool
	return func() {
		if !removed.CompareAndSwap(false, true) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Chain returns a delegate that republishes, verbatim and under its
// original sender name, any message it receives onto this bus. It lets
// a caller wire one component's diagnostics into another's by
// subscribing the returned delegate to the other component's bus.
func (b *Bus) Chain() MessageDelegate {
	return func(senderName string, level Level, message string) {
		b.dispatch(senderName, level, message)
	}
}

// MinLevel returns the lowest minLevel among current subscribers, or a
// sentinel "infinity" value when there are none, letting a producer
// skip expensive formatting when nobody would receive it.
func (b *Bus) MinLevel() Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return levelInfinity
	}
	min := b.subs[0].minLevel
	for _, s := range b.subs[1:] {
		if s.minLevel < min {
			min = s.minLevel
		}
	}
	return min
}

// Publish composes the final message by prepending every pushed
// context frame (in push order, joined by ": ") to message, then
// delivers it synchronously, in subscription order, to every
// subscriber whose minLevel is at or below level.
func (b *Bus) Publish(level Level, message string) {
	b.dispatch(b.name, level, b.compose(message))
}

// Publishf is Publish with fmt.Sprintf-style formatting. The formatted
// buffer always holds the whole message; it is never truncated.
func (b *Bus) Publishf(level Level, format string, args ...any) {
	b.Publish(level, fmt.Sprintf(format, args...))
}

// PushContext adds context onto the top of the contextual-information
// stack and returns a function that pops it back off. It mirrors the
// teacher's GetSynchronous()-style "call me when you're done" handle,
// since Go has no scope destructors to pop the context automatically.
func (b *Bus) PushContext(context string) func() {
	b.mu.Lock()
	b.context = append(b.context, context)
	depth := len(b.context)
	b.mu.Unlock()
	var popped atomic.Bool
	return func() {
		if !popped.CompareAndSwap(false, true) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		// Guard against unbalanced push/pop on a shared bus: only pop
		// if this frame is still where we left it.
		if len(b.context) == depth {
			b.context = b.context[:depth-1]
		}
	}
}

func (b *Bus) compose(message string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.context) == 0 {
		return message
	}
	var sb strings.Builder
	for _, frame := range b.context {
		sb.WriteString(frame)
		sb.WriteString(": ")
	}
	sb.WriteString(message)
	return sb.String()
}

func (b *Bus) dispatch(senderName string, level Level, message string) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		if s.minLevel <= level {
			s.delegate(senderName, level, message)
		}
	}
}
