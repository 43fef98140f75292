package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, st := range []Status{StatusUnread, StatusPending, StatusImportant} {
		parsed, ok := ParseStatus(st.String())
		assert.True(t, ok)
		assert.Equal(t, st, parsed)
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	_, ok := ParseStatus("starred")
	assert.False(t, ok)
	_, ok = ParseStatus("")
	assert.False(t, ok)
	_, ok = ParseStatus("Unread")
	assert.False(t, ok)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(0))
	assert.True(t, ValidStatus(1))
	assert.True(t, ValidStatus(2))
	assert.False(t, ValidStatus(-1))
	assert.False(t, ValidStatus(3))
}

func TestStatusStringUnknown(t *testing.T) {
	assert.Equal(t, "unknown", Status(7).String())
}
