package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueSerializesPerKey(t *testing.T) {
	t.Parallel()

	queue := NewConversationQueue()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		order   []int
	)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_ = queue.Submit(context.Background(), "telegram:1", func() error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				order = append(order, i)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
		// Stagger submissions so arrival order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent tasks for one key = %d, want 1", maxSeen)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order = %v, want FIFO", order)
		}
	}
}

func TestQueueKeysRunConcurrently(t *testing.T) {
	t.Parallel()

	queue := NewConversationQueue()

	release := make(chan struct{})
	firstRunning := make(chan struct{})

	go func() {
		_ = queue.Submit(context.Background(), "telegram:1", func() error {
			close(firstRunning)
			<-release
			return nil
		})
	}()

	<-firstRunning

	done := make(chan struct{})
	go func() {
		_ = queue.Submit(context.Background(), "telegram:2", func() error {
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task for a different key blocked behind an unrelated key")
	}

	close(release)
}

func TestQueuePredecessorErrorDoesNotBlockSuccessor(t *testing.T) {
	t.Parallel()

	queue := NewConversationQueue()

	err := queue.Submit(context.Background(), "telegram:1", func() error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected task error returned")
	}

	ran := false
	if err := queue.Submit(context.Background(), "telegram:1", func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("successor error: %v", err)
	}
	if !ran {
		t.Fatal("successor did not run after failed predecessor")
	}
}

func TestQueueCanceledContextSkipsTask(t *testing.T) {
	t.Parallel()

	queue := NewConversationQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := queue.Submit(ctx, "telegram:1", func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ran {
		t.Fatal("task ran despite canceled context")
	}

	// The canceled submission still released its slot.
	if err := queue.Submit(context.Background(), "telegram:1", func() error { return nil }); err != nil {
		t.Fatalf("follow-up submission error: %v", err)
	}
	if got := queue.PendingKeys(); got != 0 {
		t.Fatalf("pending keys = %d, want 0", got)
	}
}
