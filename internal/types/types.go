// Package types defines core data structures for unibox.
package types

import "time"

// Status is the local triage bucket of an item. The numeric values are
// part of the persisted schema and must stay stable across releases.
type Status int

const (
	StatusUnread    Status = 0
	StatusPending   Status = 1
	StatusImportant Status = 2
)

// String returns the human-readable bucket name.
func (s Status) String() string {
	switch s {
	case StatusUnread:
		return "unread"
	case StatusPending:
		return "pending"
	case StatusImportant:
		return "important"
	default:
		return "unknown"
	}
}

// ParseStatus converts a bucket name to a Status.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "unread":
		return StatusUnread, true
	case "pending":
		return StatusPending, true
	case "important":
		return StatusImportant, true
	}
	return 0, false
}

// ValidStatus reports whether the numeric value maps to a known bucket.
func ValidStatus(n int) bool {
	return n >= int(StatusUnread) && n <= int(StatusImportant)
}

// Item represents one mail message tracked in the local inbox. A row only
// exists while the remote provider still considers the message open
// (unread/unseen); once it is read or deleted remotely, the next
// reconciliation pass removes it.
type Item struct {
	ID         int64     `json:"id"`
	Account    string    `json:"account"`
	ExternalID string    `json:"external_id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Preview    string    `json:"preview,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Status     Status    `json:"status"`
}

// SyncResult holds the result of reconciling a single account.
type SyncResult struct {
	Account  string `json:"account"`
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`
	Restated int    `json:"restated,omitempty"` // status changes picked up from provider-side flag toggles
	Skipped  int    `json:"skipped,omitempty"`  // detail fetches deferred or failed this pass
	Error    string `json:"error,omitempty"`
}

// SyncSummary holds the result of reconciling all accounts.
type SyncSummary struct {
	Accounts  []SyncResult `json:"accounts"`
	TotalNew  int          `json:"total_new"`
	TotalInDB int          `json:"total_in_db"`
}
