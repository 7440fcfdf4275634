package platelog

import (
	"context"
	"sync"
)

// ticketLock is a FIFO mutex: callers are served in the order they called
// lock, unlike sync.Mutex which gives no ordering guarantee.
type ticketLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64 // next ticket to hand out
	serving uint64 // ticket currently allowed to run
	// abandoned tickets, skipped when their turn comes.
	abandoned map[uint64]bool
}

// lock waits for the caller's turn. If ctx is done first, the ticket is
// abandoned and ctx's error returned.
func (t *ticketLock) lock(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cond == nil {
		t.cond = sync.NewCond(&t.mu)
	}
	ticket := t.next
	t.next++

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.cond.Broadcast()
		})
		defer stop()
	}

	for t.serving != ticket {
		if err := ctx.Err(); err != nil {
			if t.abandoned == nil {
				t.abandoned = make(map[uint64]bool)
			}
			t.abandoned[ticket] = true
			return err
		}
		t.cond.Wait()
	}
	return nil
}

// unlock hands the turn to the next live ticket.
func (t *ticketLock) unlock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serving++
	for t.abandoned[t.serving] {
		delete(t.abandoned, t.serving)
		t.serving++
	}
	t.cond.Broadcast()
}
