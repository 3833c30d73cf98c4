// Package queue makes offline mutations durable and replays them in order
// once connectivity returns. The log is a JSON-lines file: appends on
// enqueue, full rewrite on acknowledge; an in-memory mirror answers
// PendingCount in O(1).
package queue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

// Queue is a durable, order-preserving pending-operation log. Safe for
// concurrent use.
type Queue struct {
	mu   sync.Mutex
	path string
	ops  []clowddav.PendingOperation
}

// Open loads the pending-operation log at path, creating it when absent.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op clowddav.PendingOperation
		if err := json.Unmarshal(line, &op); err != nil {
			// A torn tail write loses that record only.
			continue
		}
		q.ops = append(q.ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	return q, nil
}

// Enqueue appends an operation to the log. A missing id and timestamp are
// assigned.
func (q *Queue) Enqueue(op clowddav.PendingOperation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}

	q.ops = append(q.ops, op)
	return nil
}

// Head returns the oldest pending operation without removing it.
func (q *Queue) Head() (clowddav.PendingOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return clowddav.PendingOperation{}, false
	}
	return q.ops[0], true
}

// Ack removes the head operation if its id matches, persisting the
// shortened log. Replay removes an operation only after it fully succeeded.
func (q *Queue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 || q.ops[0].ID != id {
		return fmt.Errorf("operation %q is not at the head of the queue", id)
	}
	rest := q.ops[1:]
	if err := q.rewrite(rest); err != nil {
		return err
	}
	q.ops = rest
	return nil
}

// rewrite persists the full remaining log atomically. Caller holds the lock.
func (q *Queue) rewrite(ops []clowddav.PendingOperation) error {
	tmp, err := os.CreateTemp(filepath.Dir(q.path), "queue-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create queue temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, op := range ops {
		line, err := json.Marshal(op)
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to flush queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), q.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}

// PendingCount returns the number of queued operations.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the queued operations in replay order.
func (q *Queue) Pending() []clowddav.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]clowddav.PendingOperation, len(q.ops))
	copy(out, q.ops)
	return out
}

// Clear drops every queued operation.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.rewrite(nil); err != nil {
		return err
	}
	q.ops = nil
	return nil
}
