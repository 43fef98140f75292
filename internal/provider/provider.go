// Package provider defines the uniform capability set every remote mail
// service adapter implements, and the registry that selects an adapter for
// a provider account string.
//
// A provider account is the unit of independent synchronization: a
// (service kind, credentialed identity) pair, written as an opaque string
// such as "gmail", "outlook" or "imap:user@example.com". The kind is
// parsed once when the registry is built, never re-parsed per operation.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemDetail is the display-level detail an adapter resolves for one
// remote message. Flagged carries the provider's native star/flag bit so
// the reconciliation pass can seed an initial triage bucket.
type ItemDetail struct {
	ExternalID string
	Subject    string
	Sender     string
	Preview    string
	ReceivedAt time.Time
	Flagged    bool
}

// Adapter is the capability set of one provider account. External ids
// returned and accepted by an adapter are always expressed in the
// account's namespace (IMAP adapters prefix raw UIDs, see imapmail).
type Adapter interface {
	// Account returns the provider account string this adapter serves.
	Account() string

	// ListOpenIDs returns all ids the provider currently considers open
	// (Gmail/Outlook: unread; IMAP: unseen).
	ListOpenIDs(ctx context.Context) (map[string]struct{}, error)

	// FetchDetails resolves a batch of ids to display detail. Adapters
	// enforce a per-call cap to bound latency and quota burn; ids past
	// the cap are simply not resolved this call and callers pick them up
	// on a later pass. Per-item decode failures degrade to placeholder
	// text rather than failing the batch.
	FetchDetails(ctx context.Context, ids []string) ([]ItemDetail, error)

	MarkRead(ctx context.Context, externalID string) error
	MarkImportant(ctx context.Context, externalID string) error
	MarkUnimportant(ctx context.Context, externalID string) error
	Delete(ctx context.Context, externalID string) error
}

// FlagStater is implemented by adapters that can cheaply report the
// current flag/star bit for already-known items (IMAP, Outlook). Gmail
// omits it and relies solely on open/closed transitions.
type FlagStater interface {
	FetchFlagStates(ctx context.Context, ids []string) (map[string]bool, error)
}

// Placeholder text used when provider-native decoding fails for one item.
const (
	NoSubject     = "(no subject)"
	UnknownSender = "(unknown sender)"
)

// PreviewLimit bounds the stored preview length in runes.
const PreviewLimit = 120

// ConnError marks a connectivity or authentication failure: the adapter
// could not reach or log in to the remote service at all. It aborts the
// current pass for that account and nothing else.
type ConnError struct {
	Account string
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Account, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnErr reports whether err (or any error in its chain) is a ConnError.
func IsConnErr(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}

// Kind identifies a provider family.
type Kind string

const (
	KindGmail   Kind = "gmail"
	KindOutlook Kind = "outlook"
	KindIMAP    Kind = "imap"
	KindUnknown Kind = "unknown"
)

// KindOf parses the provider family out of an account string.
func KindOf(account string) Kind {
	switch {
	case account == "gmail" || strings.HasPrefix(account, "gmail:"):
		return KindGmail
	case account == "outlook" || strings.HasPrefix(account, "outlook:"):
		return KindOutlook
	case strings.HasPrefix(account, "imap:"):
		return KindIMAP
	default:
		return KindUnknown
	}
}

// CollapsePreview normalizes body text into a single-line preview capped
// at PreviewLimit runes.
func CollapsePreview(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	runes := []rune(collapsed)
	if len(runes) > PreviewLimit {
		return string(runes[:PreviewLimit])
	}
	return collapsed
}

// DefaultStr returns fallback when s is empty.
func DefaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
