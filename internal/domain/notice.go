package domain

import "time"

// NoticeKind classifies a user-facing feedback message.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient feedback message. At most one is visible at a
// time; a newer notice replaces the current one rather than queuing.
type Notice struct {
	ID        string
	Kind      NoticeKind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the notice has passed its visible lifetime.
func (n Notice) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}
