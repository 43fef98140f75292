// Package recon keeps the local item store consistent with the remote
// mailboxes.
//
// One pass reconciles one provider account and is independent of all
// other accounts: no connection or state is shared, so passes may run
// concurrently per account. A pass is idempotent; re-running it against
// an unchanged remote is a no-op.
package recon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daviddao/unibox/internal/db"
	"github.com/daviddao/unibox/internal/provider"
	"github.com/daviddao/unibox/internal/types"
)

// Engine drives reconciliation passes against the local store.
type Engine struct {
	Store *db.DB
	Log   *slog.Logger
}

// New creates an Engine.
func New(store *db.DB, log *slog.Logger) *Engine {
	return &Engine{Store: store, Log: log}
}

// SyncAccount runs one reconciliation pass for the adapter's account:
//
//  1. list the remote open set,
//  2. delete local rows the remote no longer considers open,
//  3. fetch and insert newly appeared items (capped per pass; the
//     remainder is picked up next time),
//  4. re-check the flag state of items open on both sides, for adapters
//     that can report it.
//
// Deletions run strictly before insertions so an id can never be deleted
// for staleness and re-inserted within the same pass. A connectivity
// failure at step 1 aborts the pass with zero local mutation.
func (e *Engine) SyncAccount(ctx context.Context, a provider.Adapter) (*types.SyncResult, error) {
	account := a.Account()
	result := &types.SyncResult{Account: account}

	remote, err := a.ListOpenIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("list open ids for %s: %w", account, err)
	}

	local, err := e.Store.ExistingIDs(account)
	if err != nil {
		return result, fmt.Errorf("read local ids for %s: %w", account, err)
	}

	// Stale: locally tracked but no longer open remotely (read or deleted
	// on the provider's own client).
	var toDelete []string
	for id := range local {
		if _, ok := remote[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) > 0 {
		n, err := e.Store.DeleteByExternalIDs(toDelete)
		if err != nil {
			return result, fmt.Errorf("delete stale items for %s: %w", account, err)
		}
		result.Deleted = n
		e.Log.Info("removed stale items", "account", account, "count", n)
	}

	// New: open remotely, not yet tracked.
	var toInsert []string
	for id := range remote {
		if _, ok := local[id]; !ok {
			toInsert = append(toInsert, id)
		}
	}
	if len(toInsert) > 0 {
		inserted, skipped, err := e.insertNew(ctx, a, toInsert)
		if err != nil {
			return result, err
		}
		result.Inserted = inserted
		result.Skipped = skipped
	}

	// Still open on both sides: reconcile importance toggles made directly
	// on the provider's native client.
	if fs, ok := a.(provider.FlagStater); ok {
		var existing []string
		for id := range remote {
			if _, ok := local[id]; ok {
				existing = append(existing, id)
			}
		}
		if len(existing) > 0 {
			result.Restated = e.syncFlags(ctx, account, fs, existing)
		}
	}

	return result, nil
}

// insertNew fetches detail for newly appeared ids and inserts them. The
// adapter caps how many details one call resolves; unresolved ids remain
// in remote−local and are retried on the next pass, so no retry queue is
// persisted.
func (e *Engine) insertNew(ctx context.Context, a provider.Adapter, ids []string) (inserted, skipped int, err error) {
	details, err := a.FetchDetails(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch details for %s: %w", a.Account(), err)
	}

	items := make([]*types.Item, 0, len(details))
	for _, d := range details {
		st := types.StatusUnread
		if d.Flagged {
			st = types.StatusImportant
		}
		items = append(items, &types.Item{
			Account:    a.Account(),
			ExternalID: d.ExternalID,
			Subject:    d.Subject,
			Sender:     d.Sender,
			Preview:    d.Preview,
			ReceivedAt: d.ReceivedAt,
			Status:     st,
		})
	}

	n, err := e.Store.PutIfAbsent(items)
	if err != nil {
		return 0, 0, fmt.Errorf("insert items for %s: %w", a.Account(), err)
	}

	skipped = len(ids) - len(details)
	if skipped > 0 {
		e.Log.Info("deferred detail fetches to next pass", "account", a.Account(), "count", skipped)
	}
	e.Log.Info("inserted new items", "account", a.Account(), "count", n)
	return n, skipped, nil
}

// syncFlags maps the remote flag bit onto the local bucket for items open
// on both sides. Pending is purely local and is never overwritten by a
// matching flag state: only a genuine remote toggle (flagged vs the
// stored bucket) rewrites the row. Per-item failures do not block others.
func (e *Engine) syncFlags(ctx context.Context, account string, fs provider.FlagStater, ids []string) int {
	states, err := fs.FetchFlagStates(ctx, ids)
	if err != nil {
		e.Log.Warn("flag state fetch failed", "account", account, "err", err)
		return 0
	}

	changed := 0
	for id, flagged := range states {
		item, err := e.Store.GetByExternalID(id)
		if err != nil {
			continue
		}
		want := item.Status
		switch {
		case flagged && item.Status != types.StatusImportant:
			want = types.StatusImportant
		case !flagged && item.Status == types.StatusImportant:
			want = types.StatusUnread
		}
		if want == item.Status {
			continue
		}
		did, err := e.Store.SetStatusByExternalID(id, want)
		if err != nil {
			e.Log.Warn("flag sync update failed", "account", account, "id", id, "err", err)
			continue
		}
		if did {
			changed++
			e.Log.Info("status restated from provider flag", "account", account, "id", id, "status", want)
		}
	}
	return changed
}

// SyncAll reconciles every registered account in turn. Accounts fail
// independently: an error is recorded on that account's result and the
// remaining accounts still run.
func (e *Engine) SyncAll(ctx context.Context, reg *provider.Registry) *types.SyncSummary {
	summary := &types.SyncSummary{}
	for _, account := range reg.Accounts() {
		result, err := e.SyncAccount(ctx, reg.ForAccount(account))
		if err != nil {
			result.Error = err.Error()
			e.Log.Error("sync pass failed", "account", account, "err", err)
		}
		summary.Accounts = append(summary.Accounts, *result)
		summary.TotalNew += result.Inserted
	}
	summary.TotalInDB = e.Store.ItemCount()
	return summary
}
