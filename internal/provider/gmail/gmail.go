// Package gmail implements the provider adapter for Gmail accounts using
// google.golang.org/api/gmail/v1.
//
// Open items are messages carrying the UNREAD label. The star is Gmail's
// native important marker, so mark-important toggles STARRED.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/unibox/internal/provider"
)

// fetchCap bounds how many message details one FetchDetails call resolves.
// Remaining ids are picked up on a later reconciliation pass.
const fetchCap = 25

// Adapter serves one Gmail account.
type Adapter struct {
	account string
	svc     *gm.Service
	log     *slog.Logger
}

// New creates a Gmail adapter over an authenticated service.
func New(account string, svc *gm.Service, log *slog.Logger) *Adapter {
	return &Adapter{account: account, svc: svc, log: log}
}

// Account returns the provider account string.
func (a *Adapter) Account() string { return a.account }

// ListOpenIDs returns the ids of all unread inbox messages.
func (a *Adapter) ListOpenIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	pageToken := ""
	for {
		call := a.svc.Users.Messages.List("me").
			LabelIds("UNREAD").
			Q("in:inbox").
			MaxResults(500).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, &provider.ConnError{Account: a.account, Err: err}
		}
		for _, msg := range resp.Messages {
			ids[msg.Id] = struct{}{}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

// FetchDetails resolves up to fetchCap message ids to display detail.
// Individual fetch failures are logged and skipped; the item stays in the
// remote-minus-local set and is retried on the next pass.
func (a *Adapter) FetchDetails(ctx context.Context, ids []string) ([]provider.ItemDetail, error) {
	details := make([]provider.ItemDetail, 0, min(len(ids), fetchCap))
	for i, id := range ids {
		if i >= fetchCap {
			break
		}
		msg, err := a.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			a.log.Warn("fetch message detail failed", "account", a.account, "id", id, "err", err)
			continue
		}
		details = append(details, a.toDetail(msg))
	}
	return details, nil
}

func (a *Adapter) toDetail(msg *gm.Message) provider.ItemDetail {
	headers := headerMap(msg.Payload)

	flagged := false
	for _, l := range msg.LabelIds {
		if l == "STARRED" {
			flagged = true
			break
		}
	}

	// internalDate is epoch milliseconds.
	received := time.Unix(0, msg.InternalDate*int64(time.Millisecond)).UTC()
	if msg.InternalDate == 0 {
		received = time.Now().UTC()
	}

	preview := msg.Snippet
	if preview == "" {
		preview = extractText(msg.Payload)
	}

	return provider.ItemDetail{
		ExternalID: msg.Id,
		Subject:    provider.DefaultStr(headers["Subject"], provider.NoSubject),
		Sender:     provider.DefaultStr(headers["From"], provider.UnknownSender),
		Preview:    provider.CollapsePreview(preview),
		ReceivedAt: received,
		Flagged:    flagged,
	}
}

// MarkRead removes the UNREAD label.
func (a *Adapter) MarkRead(ctx context.Context, externalID string) error {
	return a.modify(ctx, externalID, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	})
}

// MarkImportant stars the message.
func (a *Adapter) MarkImportant(ctx context.Context, externalID string) error {
	return a.modify(ctx, externalID, &gm.ModifyMessageRequest{
		AddLabelIds: []string{"STARRED"},
	})
}

// MarkUnimportant unstars the message.
func (a *Adapter) MarkUnimportant(ctx context.Context, externalID string) error {
	return a.modify(ctx, externalID, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"STARRED"},
	})
}

// Delete moves the message to the trash.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	if _, err := a.svc.Users.Messages.Trash("me", externalID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("trash message %s: %w", externalID, err)
	}
	return nil
}

func (a *Adapter) modify(ctx context.Context, id string, req *gm.ModifyMessageRequest) error {
	if _, err := a.svc.Users.Messages.Modify("me", id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify message %s: %w", id, err)
	}
	return nil
}

// headerMap flattens the payload headers into a key-value map.
func headerMap(payload *gm.MessagePart) map[string]string {
	if payload == nil {
		return map[string]string{}
	}
	m := make(map[string]string, len(payload.Headers))
	for _, h := range payload.Headers {
		m[h.Name] = h.Value
	}
	return m
}

// extractText pulls plain text from a message payload when the API did
// not supply a snippet. Handles multipart messages recursively, preferring
// text/plain.
func extractText(payload *gm.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractText(part); body != "" {
				return body
			}
		}
	}
	return ""
}

// decodeBase64URL decodes Gmail's base64url-encoded content.
func decodeBase64URL(data string) (string, error) {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
