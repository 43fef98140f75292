// Package triage implements the user-visible state transitions on items.
//
// Every outward action follows the same two-phase protocol: the remote
// action must succeed before any local state changes. On remote failure
// the item stays in its prior bucket so the user can retry. Accounts with
// no configured provider integration resolve to a no-op adapter, so their
// actions degrade to local-only bookkeeping.
package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daviddao/unibox/internal/db"
	"github.com/daviddao/unibox/internal/provider"
	"github.com/daviddao/unibox/internal/types"
)

// RemoteError marks a failed remote provider action. Local state is
// guaranteed untouched when it is returned.
type RemoteError struct {
	Action  string
	Account string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Action, e.Account, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Controller drives triage actions through the provider adapters and the
// local store.
type Controller struct {
	Store    *db.DB
	Adapters *provider.Registry
	Log      *slog.Logger
}

// New creates a Controller.
func New(store *db.DB, adapters *provider.Registry, log *slog.Logger) *Controller {
	return &Controller{Store: store, Adapters: adapters, Log: log}
}

// MarkRead marks the item read on its provider, then removes the local
// row: read items leave the open view entirely.
func (c *Controller) MarkRead(ctx context.Context, id int64) error {
	item, err := c.Store.Get(id)
	if err != nil {
		return err
	}

	adapter := c.Adapters.ForAccount(item.Account)
	if err := adapter.MarkRead(ctx, item.ExternalID); err != nil {
		return &RemoteError{Action: "mark read", Account: item.Account, Err: err}
	}

	if _, err := c.Store.DeleteByExternalIDs([]string{item.ExternalID}); err != nil {
		return fmt.Errorf("remove read item %s: %w", item.ExternalID, err)
	}
	c.Log.Info("marked read", "account", item.Account, "id", item.ExternalID)
	return nil
}

// MarkPending moves the item to the pending bucket. Pending has no remote
// counterpart, so this is purely local.
func (c *Controller) MarkPending(ctx context.Context, id int64) error {
	_ = ctx
	return c.Store.SetStatus(id, types.StatusPending)
}

// MarkImportant sets the provider's native flag/star, then the local bucket.
func (c *Controller) MarkImportant(ctx context.Context, id int64) error {
	return c.setImportance(ctx, id, true)
}

// MarkUnimportant clears the provider's native flag/star, then returns the
// item to the unread bucket.
func (c *Controller) MarkUnimportant(ctx context.Context, id int64) error {
	return c.setImportance(ctx, id, false)
}

func (c *Controller) setImportance(ctx context.Context, id int64, important bool) error {
	item, err := c.Store.Get(id)
	if err != nil {
		return err
	}

	adapter := c.Adapters.ForAccount(item.Account)
	action := "mark important"
	remoteCall := adapter.MarkImportant
	target := types.StatusImportant
	if !important {
		action = "mark unimportant"
		remoteCall = adapter.MarkUnimportant
		target = types.StatusUnread
	}

	if err := remoteCall(ctx, item.ExternalID); err != nil {
		return &RemoteError{Action: action, Account: item.Account, Err: err}
	}

	if err := c.Store.SetStatus(id, target); err != nil {
		return fmt.Errorf("update status of %s: %w", item.ExternalID, err)
	}
	c.Log.Info(action, "account", item.Account, "id", item.ExternalID)
	return nil
}

// Delete removes the item remotely (IMAP: \Deleted plus expunge), then
// locally.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	item, err := c.Store.Get(id)
	if err != nil {
		return err
	}

	adapter := c.Adapters.ForAccount(item.Account)
	if err := adapter.Delete(ctx, item.ExternalID); err != nil {
		return &RemoteError{Action: "delete", Account: item.Account, Err: err}
	}

	if _, err := c.Store.DeleteByExternalIDs([]string{item.ExternalID}); err != nil {
		return fmt.Errorf("remove deleted item %s: %w", item.ExternalID, err)
	}
	c.Log.Info("deleted", "account", item.Account, "id", item.ExternalID)
	return nil
}

// GetNext pages through a bucket one item at a time, oldest first.
func (c *Controller) GetNext(st types.Status, offset int) (*types.Item, error) {
	return c.Store.Next(st, offset)
}

// Get returns one item by local id.
func (c *Controller) Get(id int64) (*types.Item, error) {
	return c.Store.Get(id)
}
