// Package imapmail implements the provider adapter for arbitrary IMAP
// accounts using go-imap v2.
//
// Raw IMAP UIDs are only unique within one mailbox, so external ids are
// namespaced as "imap_<username>_<uid>". The account string is
// "imap:<username>".
package imapmail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/daviddao/unibox/internal/provider"
)

// fetchCap bounds detail resolution per call.
const fetchCap = 30

// Config holds the connection settings for one IMAP account.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// Adapter serves one IMAP account. Each operation opens a scoped
// connection: dial, login, select INBOX, do the work, logout. There is no
// connection shared across passes.
type Adapter struct {
	cfg Config
	log *slog.Logger
}

// New creates an IMAP adapter.
func New(cfg Config, log *slog.Logger) *Adapter {
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	return &Adapter{cfg: cfg, log: log}
}

// Account returns "imap:<username>".
func (a *Adapter) Account() string {
	return "imap:" + a.cfg.Username
}

// prefix is the external-id namespace for this account.
func (a *Adapter) prefix() string {
	return "imap_" + a.cfg.Username + "_"
}

// ExternalID renders a native UID in this account's namespace.
func (a *Adapter) ExternalID(uid imap.UID) string {
	return a.prefix() + strconv.FormatUint(uint64(uid), 10)
}

// parseUID recovers the native UID from a namespaced external id.
func (a *Adapter) parseUID(externalID string) (imap.UID, error) {
	raw, ok := strings.CutPrefix(externalID, a.prefix())
	if !ok {
		return 0, fmt.Errorf("external id %q not in namespace %q", externalID, a.prefix())
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IMAP uid %q: %w", raw, err)
	}
	return imap.UID(n), nil
}

// connect dials, authenticates and selects INBOX. The caller owns the
// returned client and must Logout.
func (a *Adapter) connect(_ context.Context) (*imapclient.Client, error) {
	addr := a.cfg.Host + ":" + a.cfg.Port

	var client *imapclient.Client
	var err error
	if a.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &provider.ConnError{Account: a.Account(), Err: err}
	}

	if err := client.Login(a.cfg.Username, a.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &provider.ConnError{
			Account: a.Account(),
			Err:     fmt.Errorf("login %s: %w", a.cfg.Username, err),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &provider.ConnError{
			Account: a.Account(),
			Err:     fmt.Errorf("select INBOX: %w", err),
		}
	}

	return client, nil
}

// ListOpenIDs returns the namespaced ids of all unseen messages.
func (a *Adapter) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &provider.ConnError{
			Account: a.Account(),
			Err:     fmt.Errorf("search unseen: %w", err),
		}
	}

	ids := make(map[string]struct{})
	for _, uid := range searchData.AllUIDs() {
		ids[a.ExternalID(uid)] = struct{}{}
	}
	return ids, nil
}

// FetchDetails resolves up to fetchCap messages to display detail in one
// connection. Messages whose MIME content fails to parse degrade to
// placeholder subject/sender and an empty preview instead of failing the
// batch.
func (a *Adapter) FetchDetails(ctx context.Context, ids []string) ([]provider.ItemDetail, error) {
	if len(ids) > fetchCap {
		ids = ids[:fetchCap]
	}

	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		uid, err := a.parseUID(id)
		if err != nil {
			a.log.Warn("skipping malformed external id", "account", a.Account(), "id", id, "err", err)
			continue
		}
		uids = append(uids, uid)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var details []provider.ItemDetail
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			a.log.Warn("collect message failed", "account", a.Account(), "err", err)
			continue
		}
		details = append(details, a.toDetail(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return details, fmt.Errorf("fetch details: %w", err)
	}
	return details, nil
}

func (a *Adapter) toDetail(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) provider.ItemDetail {
	detail := provider.ItemDetail{
		ExternalID: a.ExternalID(buf.UID),
		Subject:    provider.NoSubject,
		Sender:     provider.UnknownSender,
		ReceivedAt: time.Now().UTC(),
		Flagged:    hasFlag(buf.Flags, imap.FlagFlagged),
	}

	if env := buf.Envelope; env != nil {
		detail.Subject = provider.DefaultStr(env.Subject, provider.NoSubject)
		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				detail.Sender = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				detail.Sender = provider.DefaultStr(from.Addr(), provider.UnknownSender)
			}
		}
		if !env.Date.IsZero() {
			detail.ReceivedAt = env.Date
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		detail.Preview = provider.CollapsePreview(textPreview(raw))
	}

	return detail
}

// textPreview extracts plain body text from a raw RFC 2822 message.
// Parse failures yield an empty preview, never an error.
func textPreview(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		return string(body)
	}
	return ""
}

// FetchFlagStates resolves the \Flagged bit for already-known items with
// a single FLAGS-only fetch. Flag presence is checked against the typed
// flag set, not the response text.
func (a *Adapter) FetchFlagStates(ctx context.Context, ids []string) (map[string]bool, error) {
	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		uid, err := a.parseUID(id)
		if err != nil {
			continue
		}
		uids = append(uids, uid)
	}
	if len(uids) == 0 {
		return map[string]bool{}, nil
	}

	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Flags: true,
		UID:   true,
	})
	defer fetchCmd.Close()

	states := make(map[string]bool, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		states[a.ExternalID(buf.UID)] = hasFlag(buf.Flags, imap.FlagFlagged)
	}

	if err := fetchCmd.Close(); err != nil {
		return states, fmt.Errorf("fetch flags: %w", err)
	}
	return states, nil
}

// MarkRead adds \Seen.
func (a *Adapter) MarkRead(ctx context.Context, externalID string) error {
	return a.storeFlags(ctx, externalID, imap.StoreFlagsAdd, imap.FlagSeen)
}

// MarkImportant adds \Flagged.
func (a *Adapter) MarkImportant(ctx context.Context, externalID string) error {
	return a.storeFlags(ctx, externalID, imap.StoreFlagsAdd, imap.FlagFlagged)
}

// MarkUnimportant removes \Flagged.
func (a *Adapter) MarkUnimportant(ctx context.Context, externalID string) error {
	return a.storeFlags(ctx, externalID, imap.StoreFlagsDel, imap.FlagFlagged)
}

// Delete flags the message \Deleted and expunges the mailbox.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	uid, err := a.parseUID(externalID)
	if err != nil {
		return err
	}

	client, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(uid)
	err = client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("store \\Deleted on %s: %w", externalID, err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func (a *Adapter) storeFlags(ctx context.Context, externalID string, op imap.StoreFlagsOp, flag imap.Flag) error {
	uid, err := a.parseUID(externalID)
	if err != nil {
		return err
	}

	client, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	err = client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{flag},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("store %s on %s: %w", flag, externalID, err)
	}
	return nil
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
