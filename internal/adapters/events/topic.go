package events

import (
	"context"
	"iter"
	"sync"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// Topic is the live log of one run. Every published line is kept with its
// position, so a subscriber can start at any offset and every subscriber
// sees every line. Publish never waits on subscribers.
type Topic struct {
	mu     sync.Mutex
	lines  []string
	closed bool
	notify chan struct{}
}

func NewTopic() *Topic {
	return &Topic{notify: make(chan struct{})}
}

func (t *Topic) Publish(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return domain.ErrClosed
	}
	t.lines = append(t.lines, line)
	t.wakeLocked()
	return nil
}

func (t *Topic) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.wakeLocked()
}

func (t *Topic) wakeLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

func (t *Topic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

func (t *Topic) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Subscribe yields lines from position offset onward until the topic is
// closed. A cancelled context ends the sequence with ctx.Err().
func (t *Topic) Subscribe(ctx context.Context, offset int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cursor := offset
		if cursor < 0 {
			cursor = 0
		}

		for {
			t.mu.Lock()
			if cursor < len(t.lines) {
				batch := append([]string(nil), t.lines[cursor:]...)
				cursor = len(t.lines)
				t.mu.Unlock()

				for _, line := range batch {
					if !yield(line, nil) {
						return
					}
				}
				continue
			}
			if t.closed {
				t.mu.Unlock()
				return
			}
			wait := t.notify
			t.mu.Unlock()

			select {
			case <-wait:
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
	}
}
