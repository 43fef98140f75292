package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		account string
		want    Kind
	}{
		{"gmail", KindGmail},
		{"gmail:work", KindGmail},
		{"outlook", KindOutlook},
		{"outlook:personal", KindOutlook},
		{"imap:user@example.com", KindIMAP},
		{"gmailx", KindUnknown},
		{"imap", KindUnknown},
		{"", KindUnknown},
		{"fastmail", KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.account), "account %q", tc.account)
	}
}

func TestCollapsePreview(t *testing.T) {
	assert.Equal(t, "a b c", CollapsePreview("  a\n\nb\t c \r\n"))
	assert.Equal(t, "", CollapsePreview("   \n\t"))

	long := strings.Repeat("é ", 200)
	got := CollapsePreview(long)
	assert.Equal(t, PreviewLimit, len([]rune(got)))
}

func TestRegistryFallsBackToNoop(t *testing.T) {
	reg := NewRegistry()
	a := reg.ForAccount("fastmail:me")

	ctx := context.Background()
	ids, err := a.ListOpenIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.NoError(t, a.MarkRead(ctx, "x"))
	assert.NoError(t, a.MarkImportant(ctx, "x"))
	assert.NoError(t, a.Delete(ctx, "x"))
	assert.Equal(t, "fastmail:me", a.Account())
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(NewNoop("gmail"))

	a, ok := reg.Lookup("gmail")
	assert.True(t, ok)
	assert.Equal(t, "gmail", a.Account())

	// No no-op fallback here: callers that reconcile must see absence.
	_, ok = reg.Lookup("imap:a@b.com")
	assert.False(t, ok)
}

func TestRegistryAccountsSorted(t *testing.T) {
	reg := NewRegistry(
		NewNoop("outlook"),
		NewNoop("gmail"),
		NewNoop("imap:a@b.com"),
	)
	assert.Equal(t, []string{"gmail", "imap:a@b.com", "outlook"}, reg.Accounts())
}

func TestUnavailableFailsEverything(t *testing.T) {
	cause := errors.New("token expired")
	u := NewUnavailable("outlook", cause)
	ctx := context.Background()

	_, err := u.ListOpenIDs(ctx)
	require.Error(t, err)
	assert.True(t, IsConnErr(err))
	assert.ErrorIs(t, err, cause)

	assert.True(t, IsConnErr(u.MarkRead(ctx, "x")))
	assert.True(t, IsConnErr(u.Delete(ctx, "x")))
}

func TestIsConnErrWrapped(t *testing.T) {
	inner := &ConnError{Account: "gmail", Err: errors.New("dial tcp: refused")}
	wrapped := fmt.Errorf("sync gmail: %w", inner)
	assert.True(t, IsConnErr(wrapped))
	assert.False(t, IsConnErr(errors.New("plain")))
}
