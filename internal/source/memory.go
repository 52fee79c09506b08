package source

import (
	"context"
	"sync"
)

// Memory is an in-process Clipboard. Queued reads are returned first, in
// order; once the queue is drained Read returns the current text.
type Memory struct {
	mu     sync.Mutex
	text   string
	queue  []memoryRead
	reads  int
	writes []string
}

type memoryRead struct {
	text string
	err  error
}

var _ Clipboard = (*Memory)(nil)

// NewMemory returns a Memory clipboard holding text.
func NewMemory(text string) *Memory {
	return &Memory{text: text}
}

// Set replaces the current text.
func (m *Memory) Set(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}

// Queue makes the next reads observe texts, one per read.
func (m *Memory) Queue(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.queue = append(m.queue, memoryRead{text: t})
	}
}

// QueueError makes the next queued read fail with err.
func (m *Memory) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, memoryRead{err: err})
}

// Read implements Clipboard.
func (m *Memory) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		if next.err != nil {
			return "", next.err
		}
		m.text = next.text
	}
	return m.text, nil
}

// Write implements Clipboard.
func (m *Memory) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes = append(m.writes, text)
	return nil
}

// Reads returns the number of Read calls.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns every text passed to Write.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}
