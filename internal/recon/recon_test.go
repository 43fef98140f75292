package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/unibox/internal/db"
	"github.com/daviddao/unibox/internal/provider"
	"github.com/daviddao/unibox/internal/types"
)

// fakeAdapter is a scriptable in-memory provider account.
type fakeAdapter struct {
	account  string
	open     map[string]struct{}
	details  map[string]provider.ItemDetail
	flags    map[string]bool
	hasFlags bool

	listErr  error
	fetchErr error
}

func newFake(account string) *fakeAdapter {
	return &fakeAdapter{
		account: account,
		open:    map[string]struct{}{},
		details: map[string]provider.ItemDetail{},
		flags:   map[string]bool{},
	}
}

func (f *fakeAdapter) add(id string, flagged bool) {
	f.open[id] = struct{}{}
	f.details[id] = provider.ItemDetail{
		ExternalID: id,
		Subject:    "subject " + id,
		Sender:     "sender@example.com",
		Preview:    "preview " + id,
		ReceivedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Flagged:    flagged,
	}
	f.flags[id] = flagged
}

func (f *fakeAdapter) remove(id string) {
	delete(f.open, id)
	delete(f.details, id)
	delete(f.flags, id)
}

func (f *fakeAdapter) Account() string { return f.account }

func (f *fakeAdapter) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]struct{}, len(f.open))
	for id := range f.open {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeAdapter) FetchDetails(ctx context.Context, ids []string) ([]provider.ItemDetail, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []provider.ItemDetail
	for _, id := range ids {
		if d, ok := f.details[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAdapter) MarkRead(ctx context.Context, externalID string) error        { return nil }
func (f *fakeAdapter) MarkImportant(ctx context.Context, externalID string) error   { return nil }
func (f *fakeAdapter) MarkUnimportant(ctx context.Context, externalID string) error { return nil }
func (f *fakeAdapter) Delete(ctx context.Context, externalID string) error          { return nil }

// flagFake adds FetchFlagStates on top of fakeAdapter.
type flagFake struct {
	*fakeAdapter
	flagErr error
}

func (f *flagFake) FetchFlagStates(ctx context.Context, ids []string) (map[string]bool, error) {
	if f.flagErr != nil {
		return nil, f.flagErr
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if flagged, ok := f.flags[id]; ok {
			out[id] = flagged
		}
	}
	return out, nil
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "unibox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSyncAccountFirstRunInserts(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("g1", false)
	fake.add("g2", true)

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 0, res.Skipped)

	plain, err := e.Store.GetByExternalID("g1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnread, plain.Status)
	assert.Equal(t, "subject g1", plain.Subject)

	// Flagged on the provider side lands directly in the important bucket.
	flagged, err := e.Store.GetByExternalID("g2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusImportant, flagged.Status)
}

func TestSyncAccountIdempotent(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("g1", false)
	fake.add("g2", false)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 2, e.Store.ItemCount())
}

func TestSyncAccountConverges(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("a", false)
	fake.add("b", false)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	// Remote moves on: "a" was read elsewhere, "c" arrived.
	fake.remove("a")
	fake.add("c", false)

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Inserted)

	ids, err := e.Store.ExistingIDs("gmail")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "b")
	assert.Contains(t, ids, "c")
}

func TestSyncAccountListFailureLeavesStoreUntouched(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("a", false)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	fake.listErr = &provider.ConnError{Account: "gmail", Err: errors.New("dial tcp: refused")}
	fake.remove("a")
	fake.add("b", false)

	_, err = e.SyncAccount(context.Background(), fake)
	require.Error(t, err)
	assert.True(t, provider.IsConnErr(err))

	// Nothing deleted, nothing inserted.
	ids, idErr := e.Store.ExistingIDs("gmail")
	require.NoError(t, idErr)
	assert.Len(t, ids, 1)
	assert.Contains(t, ids, "a")
}

func TestSyncAccountFetchFailureAbortsInsert(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("a", false)
	fake.fetchErr = errors.New("quota exceeded")

	_, err := e.SyncAccount(context.Background(), fake)
	require.Error(t, err)
	assert.Equal(t, 0, e.Store.ItemCount())
}

func TestSyncAccountCountsDeferredDetails(t *testing.T) {
	e := newEngine(t)
	fake := newFake("gmail")
	fake.add("a", false)
	fake.add("b", false)
	fake.add("c", false)
	// Detail for "c" is not resolvable this pass.
	delete(fake.details, "c")

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	// Next pass picks the leftover up; the two stored rows are untouched.
	fake.details["c"] = provider.ItemDetail{
		ExternalID: "c",
		Subject:    "subject c",
		Sender:     "sender@example.com",
		ReceivedAt: time.Now().UTC(),
	}
	res, err = e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 3, e.Store.ItemCount())
}

func TestSyncAccountRestatesFlagToggles(t *testing.T) {
	e := newEngine(t)
	fake := &flagFake{fakeAdapter: newFake("imap:a@b.com")}
	fake.add("imap_a@b.com_1", false)
	fake.add("imap_a@b.com_2", true)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	// User toggles both flags in their native mail client.
	fake.flags["imap_a@b.com_1"] = true
	fake.flags["imap_a@b.com_2"] = false

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Restated)

	it, err := e.Store.GetByExternalID("imap_a@b.com_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusImportant, it.Status)

	it, err = e.Store.GetByExternalID("imap_a@b.com_2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnread, it.Status)
}

func TestSyncAccountPreservesPending(t *testing.T) {
	e := newEngine(t)
	fake := &flagFake{fakeAdapter: newFake("imap:a@b.com")}
	fake.add("imap_a@b.com_1", false)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	// Deferred locally; the provider has no notion of pending.
	_, err = e.Store.SetStatusByExternalID("imap_a@b.com_1", types.StatusPending)
	require.NoError(t, err)

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Restated)

	it, err := e.Store.GetByExternalID("imap_a@b.com_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, it.Status)

	// A genuine remote flag still promotes a pending item.
	fake.flags["imap_a@b.com_1"] = true
	res, err = e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restated)

	it, err = e.Store.GetByExternalID("imap_a@b.com_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusImportant, it.Status)
}

func TestSyncAccountFlagFetchFailureDoesNotAbort(t *testing.T) {
	e := newEngine(t)
	fake := &flagFake{fakeAdapter: newFake("outlook")}
	fake.add("o1", false)

	_, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)

	fake.flagErr = errors.New("throttled")
	fake.add("o2", false)

	res, err := e.SyncAccount(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Restated)
}

func TestSyncAllIsolatesAccountFailures(t *testing.T) {
	e := newEngine(t)

	good := newFake("gmail")
	good.add("g1", false)

	bad := newFake("outlook")
	bad.listErr = &provider.ConnError{Account: "outlook", Err: errors.New("401")}

	reg := provider.NewRegistry(good, bad)
	summary := e.SyncAll(context.Background(), reg)

	require.Len(t, summary.Accounts, 2)
	byAccount := map[string]types.SyncResult{}
	for _, r := range summary.Accounts {
		byAccount[r.Account] = r
	}
	assert.Equal(t, 1, byAccount["gmail"].Inserted)
	assert.Empty(t, byAccount["gmail"].Error)
	assert.NotEmpty(t, byAccount["outlook"].Error)
	assert.Equal(t, 1, summary.TotalNew)
	assert.Equal(t, 1, summary.TotalInDB)
}
