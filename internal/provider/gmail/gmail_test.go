package gmail

import (
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/unibox/internal/provider"
)

func b64url(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestDecodeBase64URL(t *testing.T) {
	cases := []string{
		"",
		"a",
		"ab",
		"abc",
		"hello world",
		"literal +/ chars survive the url alphabet \xff\xfe",
	}
	for _, want := range cases {
		got, err := decodeBase64URL(b64url(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := decodeBase64URL("!!!not base64!!!")
	assert.Error(t, err)
}

func TestHeaderMap(t *testing.T) {
	m := headerMap(&gm.MessagePart{Headers: []*gm.MessagePartHeader{
		{Name: "Subject", Value: "Hi"},
		{Name: "From", Value: "Alice <alice@example.com>"},
	}})
	assert.Equal(t, "Hi", m["Subject"])
	assert.Equal(t, "Alice <alice@example.com>", m["From"])

	assert.Empty(t, headerMap(nil))
}

func TestExtractTextPrefersPlainPart(t *testing.T) {
	payload := &gm.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gm.MessagePart{
			{MimeType: "text/html", Body: &gm.MessagePartBody{Data: b64url("<b>hi</b>")}},
			{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64url("plain body")}},
		},
	}
	assert.Equal(t, "plain body", extractText(payload))
}

func TestExtractTextNested(t *testing.T) {
	payload := &gm.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gm.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gm.MessagePart{
					{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64url("nested body")}},
				},
			},
		},
	}
	assert.Equal(t, "nested body", extractText(payload))
	assert.Equal(t, "", extractText(nil))
	assert.Equal(t, "", extractText(&gm.MessagePart{}))
}

func TestToDetail(t *testing.T) {
	a := New("gmail", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg := &gm.Message{
		Id:           "m1",
		Snippet:      "snippet   with\nspace",
		InternalDate: time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC).UnixMilli(),
		LabelIds:     []string{"INBOX", "UNREAD", "STARRED"},
		Payload: &gm.MessagePart{Headers: []*gm.MessagePartHeader{
			{Name: "Subject", Value: "Release notes"},
			{Name: "From", Value: "Bob <bob@example.com>"},
		}},
	}

	d := a.toDetail(msg)
	assert.Equal(t, "m1", d.ExternalID)
	assert.Equal(t, "Release notes", d.Subject)
	assert.Equal(t, "Bob <bob@example.com>", d.Sender)
	assert.Equal(t, "snippet with space", d.Preview)
	assert.True(t, d.Flagged)
	assert.True(t, d.ReceivedAt.Equal(time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)))
}

func TestToDetailDegradesToPlaceholders(t *testing.T) {
	a := New("gmail", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d := a.toDetail(&gm.Message{Id: "m2"})
	assert.Equal(t, provider.NoSubject, d.Subject)
	assert.Equal(t, provider.UnknownSender, d.Sender)
	assert.Equal(t, "", d.Preview)
	assert.False(t, d.Flagged)
	assert.False(t, d.ReceivedAt.IsZero())
}

func TestToDetailBodyFallback(t *testing.T) {
	a := New("gmail", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d := a.toDetail(&gm.Message{
		Id: "m3",
		Payload: &gm.MessagePart{
			MimeType: "text/plain",
			Body:     &gm.MessagePartBody{Data: b64url("body text used when no snippet")},
		},
	})
	assert.Equal(t, "body text used when no snippet", d.Preview)
}
