package provider

import (
	"context"
	"sort"
)

// Registry maps provider account strings to their adapters. It is built
// once at startup from configuration.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Account()] = a
	}
	return &Registry{adapters: m}
}

// ForAccount returns the adapter for an account. Accounts with no
// registered adapter get a Noop adapter: remote mark/delete actions
// degrade to local-only bookkeeping instead of blocking the user.
//
// Reconciliation must not use this fallback; sync entry points resolve
// accounts with Lookup instead.
func (r *Registry) ForAccount(account string) Adapter {
	if a, ok := r.adapters[account]; ok {
		return a
	}
	return Noop{account: account}
}

// Lookup returns the adapter registered for an account, if any.
func (r *Registry) Lookup(account string) (Adapter, bool) {
	a, ok := r.adapters[account]
	return a, ok
}

// Accounts returns all registered account strings, sorted.
func (r *Registry) Accounts() []string {
	out := make([]string, 0, len(r.adapters))
	for a := range r.adapters {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Noop is the adapter used for triage actions on accounts whose provider
// integration is unknown or unconfigured: every mutating action
// trivially succeeds, so actions degrade to local-only bookkeeping. It
// must never drive a reconciliation pass; its empty open set would
// delete every tracked row of the account.
type Noop struct {
	account string
}

// NewNoop returns a Noop adapter for the given account.
func NewNoop(account string) Noop { return Noop{account: account} }

func (n Noop) Account() string { return n.account }

func (n Noop) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (n Noop) FetchDetails(ctx context.Context, ids []string) ([]ItemDetail, error) {
	return nil, nil
}

func (n Noop) MarkRead(ctx context.Context, externalID string) error        { return nil }
func (n Noop) MarkImportant(ctx context.Context, externalID string) error   { return nil }
func (n Noop) MarkUnimportant(ctx context.Context, externalID string) error { return nil }
func (n Noop) Delete(ctx context.Context, externalID string) error          { return nil }

// Unavailable stands in for a configured account whose session could not
// be acquired (missing or expired credentials). Every operation fails
// with a ConnError, so a sync pass aborts cleanly for this account alone
// and triage actions surface as remote failures without local mutation.
type Unavailable struct {
	account string
	err     error
}

// NewUnavailable wraps the session-acquisition failure for an account.
func NewUnavailable(account string, err error) Unavailable {
	return Unavailable{account: account, err: err}
}

func (u Unavailable) Account() string { return u.account }

func (u Unavailable) fail() error {
	return &ConnError{Account: u.account, Err: u.err}
}

func (u Unavailable) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	return nil, u.fail()
}

func (u Unavailable) FetchDetails(ctx context.Context, ids []string) ([]ItemDetail, error) {
	return nil, u.fail()
}

func (u Unavailable) MarkRead(ctx context.Context, externalID string) error        { return u.fail() }
func (u Unavailable) MarkImportant(ctx context.Context, externalID string) error   { return u.fail() }
func (u Unavailable) MarkUnimportant(ctx context.Context, externalID string) error { return u.fail() }
func (u Unavailable) Delete(ctx context.Context, externalID string) error          { return u.fail() }
