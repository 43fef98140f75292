// Package outlook implements the provider adapter for Outlook accounts
// over the Microsoft Graph REST API.
//
// Open items are messages with isRead eq false. Graph's flag.flagStatus
// is the native important marker.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daviddao/unibox/internal/provider"
)

// DefaultBaseURL is the production Graph endpoint. Tests point the
// adapter at an httptest server instead.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// fetchCap bounds detail resolution per call; Graph message GETs are the
// most expensive detail fetch of the three providers.
const fetchCap = 10

// Adapter serves one Outlook account.
type Adapter struct {
	account    string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates an Outlook adapter. httpClient must already attach Graph
// bearer tokens (see auth.GraphClient).
func New(account string, httpClient *http.Client, log *slog.Logger) *Adapter {
	return &Adapter{
		account:    account,
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// NewWithBaseURL creates an adapter against a non-default Graph endpoint.
func NewWithBaseURL(account, baseURL string, httpClient *http.Client, log *slog.Logger) *Adapter {
	a := New(account, httpClient, log)
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

// Account returns the provider account string.
func (a *Adapter) Account() string { return a.account }

// listPage is one page of the unread-ids listing.
type listPage struct {
	Value []struct {
		ID string `json:"id"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// messageDetail is the subset of a Graph message resource we read.
type messageDetail struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	BodyPreview      string `json:"bodyPreview"`
	ReceivedDateTime string `json:"receivedDateTime"`
	Flag             struct {
		FlagStatus string `json:"flagStatus"`
	} `json:"flag"`
}

// ListOpenIDs returns the ids of all unread messages, following
// @odata.nextLink pagination.
func (a *Adapter) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	next := a.baseURL + "/me/messages?" + url.Values{
		"$filter": {"isRead eq false"},
		"$select": {"id"},
		"$top":    {"100"},
	}.Encode()

	for next != "" {
		var page listPage
		if err := a.get(ctx, next, &page); err != nil {
			return nil, &provider.ConnError{Account: a.account, Err: err}
		}
		for _, msg := range page.Value {
			ids[msg.ID] = struct{}{}
		}
		next = page.NextLink
	}
	return ids, nil
}

// FetchDetails resolves up to fetchCap message ids. A 404 or other
// per-item failure is logged and skipped without failing the batch.
func (a *Adapter) FetchDetails(ctx context.Context, ids []string) ([]provider.ItemDetail, error) {
	details := make([]provider.ItemDetail, 0, min(len(ids), fetchCap))
	for i, id := range ids {
		if i >= fetchCap {
			break
		}
		u := a.messageURL(id) + "?" + url.Values{
			"$select": {"subject,from,bodyPreview,receivedDateTime,flag"},
		}.Encode()

		var msg messageDetail
		if err := a.get(ctx, u, &msg); err != nil {
			a.log.Warn("fetch message detail failed", "account", a.account, "id", id, "err", err)
			continue
		}
		details = append(details, toDetail(id, &msg))
	}
	return details, nil
}

func toDetail(id string, msg *messageDetail) provider.ItemDetail {
	sender := provider.UnknownSender
	if addr := msg.From.EmailAddress.Address; addr != "" {
		sender = fmt.Sprintf("%s <%s>", msg.From.EmailAddress.Name, addr)
	}

	received := time.Now().UTC()
	if msg.ReceivedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, msg.ReceivedDateTime); err == nil {
			received = t
		}
	}

	return provider.ItemDetail{
		ExternalID: id,
		Subject:    provider.DefaultStr(msg.Subject, provider.NoSubject),
		Sender:     sender,
		Preview:    provider.CollapsePreview(msg.BodyPreview),
		ReceivedAt: received,
		Flagged:    msg.Flag.FlagStatus == "flagged",
	}
}

// FetchFlagStates resolves the current flag bit for already-known items.
func (a *Adapter) FetchFlagStates(ctx context.Context, ids []string) (map[string]bool, error) {
	states := make(map[string]bool, len(ids))
	for _, id := range ids {
		u := a.messageURL(id) + "?" + url.Values{"$select": {"flag"}}.Encode()
		var msg messageDetail
		if err := a.get(ctx, u, &msg); err != nil {
			a.log.Warn("fetch flag state failed", "account", a.account, "id", id, "err", err)
			continue
		}
		states[id] = msg.Flag.FlagStatus == "flagged"
	}
	return states, nil
}

// MarkRead sets isRead on the message.
func (a *Adapter) MarkRead(ctx context.Context, externalID string) error {
	return a.patch(ctx, externalID, map[string]any{"isRead": true})
}

// MarkImportant sets the Graph follow-up flag.
func (a *Adapter) MarkImportant(ctx context.Context, externalID string) error {
	return a.patch(ctx, externalID, map[string]any{
		"flag": map[string]string{"flagStatus": "flagged"},
	})
}

// MarkUnimportant clears the Graph follow-up flag.
func (a *Adapter) MarkUnimportant(ctx context.Context, externalID string) error {
	return a.patch(ctx, externalID, map[string]any{
		"flag": map[string]string{"flagStatus": "notFlagged"},
	})
}

// Delete removes the message.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.messageURL(externalID), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", externalID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete message %s: unexpected status %d", externalID, resp.StatusCode)
	}
	return nil
}

func (a *Adapter) messageURL(id string) string {
	return a.baseURL + "/me/messages/" + url.PathEscape(id)
}

// get performs a GET and unmarshals the JSON response.
func (a *Adapter) get(ctx context.Context, fullURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// patch performs a PATCH with a JSON body against one message.
func (a *Adapter) patch(ctx context.Context, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPatch, a.messageURL(id), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patch message %s: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("patch message %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}
