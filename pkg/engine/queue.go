package engine

import (
	"context"
	"sync"
)

// ConversationQueue runs at most one task per conversation key at a
// time, FIFO within a key. Tasks for different keys run concurrently.
//
// Each key maps to the completion channel of the newest submitted
// task. A submission chains on its predecessor's channel, installs its
// own, and on completion removes its map entry only if no newer
// submission has replaced it. A predecessor's failure or panic never
// blocks successors: completion channels are closed in a defer.
type ConversationQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// NewConversationQueue creates an empty queue.
func NewConversationQueue() *ConversationQueue {
	return &ConversationQueue{tails: make(map[string]chan struct{})}
}

// Submit executes task after every previously submitted task for the
// same key has finished. The predecessor wait is unconditional so a
// canceled context cannot let a successor overlap a still-running
// predecessor; cancellation is honored by skipping the task once the
// slot is owned.
func (q *ConversationQueue) Submit(ctx context.Context, conversationKey string, task func() error) error {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tails[conversationKey]
	q.tails[conversationKey] = done
	q.mu.Unlock()

	defer func() {
		close(done)

		q.mu.Lock()
		if q.tails[conversationKey] == done {
			delete(q.tails, conversationKey)
		}
		q.mu.Unlock()
	}()

	if prev != nil {
		<-prev
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return task()
}

// PendingKeys returns the number of keys with in-flight or queued work.
func (q *ConversationQueue) PendingKeys() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tails)
}
