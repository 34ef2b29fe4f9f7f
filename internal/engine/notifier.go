package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
)

// Notifier holds at most one user-facing notice at a time. A new notice
// replaces the current one rather than queuing; each notice self-expires
// after a fixed visible lifetime. Thread-safe.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *domain.Notice
	timer   *time.Timer
}

// NewNotifier creates a notifier with the given notice lifetime.
func NewNotifier(ttl time.Duration) *Notifier {
	return &Notifier{ttl: ttl}
}

// Notify publishes a notice, replacing whatever is currently visible and
// restarting the expiry clock.
func (n *Notifier) Notify(kind domain.NoticeKind, message string) domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}

	now := time.Now()
	notice := domain.Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}
	n.current = &notice

	id := notice.ID
	n.timer = time.AfterFunc(n.ttl, func() {
		n.expire(id)
	})
	return notice
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// A replacement may have raced the timer; only clear our own notice.
	if n.current != nil && n.current.ID == id {
		n.current = nil
	}
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (domain.Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || n.current.Expired(time.Now()) {
		return domain.Notice{}, false
	}
	return *n.current, true
}

// Stop cancels the pending expiry timer.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = nil
}
