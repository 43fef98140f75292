package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
db: /tmp/test/unibox.db
listen: 127.0.0.1:9999
gmail:
  - credentials_dir: /tmp/gmail
  - name: work
    credentials_dir: /tmp/gmail-work
outlook:
  client_id: abc-123
  token_path: /tmp/graph-token.json
imap:
  - host: mail.example.com
    username: a@b.com
    password: hunter2
    tls: true
  - host: mail.other.com
    port: "143"
    username: c@d.com
    password: pw
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test/unibox.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)

	require.Len(t, cfg.Gmail, 2)
	assert.Equal(t, "gmail", cfg.Gmail[0].AccountID())
	assert.Equal(t, "gmail:work", cfg.Gmail[1].AccountID())

	require.NotNil(t, cfg.Outlook)
	assert.Equal(t, "abc-123", cfg.Outlook.ClientID)
	// Tenant falls back to the consumer endpoint.
	assert.Equal(t, "consumers", cfg.Outlook.Tenant)

	require.Len(t, cfg.IMAP, 2)
	assert.Equal(t, "imap:a@b.com", cfg.IMAP[0].AccountID())
	assert.Equal(t, "993", cfg.IMAP[0].Port)
	assert.True(t, cfg.IMAP[0].TLS)
	assert.Equal(t, "143", cfg.IMAP[1].Port)
	assert.False(t, cfg.IMAP[1].TLS)

	assert.Equal(t,
		[]string{"gmail", "gmail:work", "outlook", "imap:a@b.com", "imap:c@d.com"},
		cfg.AccountIDs())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "127.0.0.1:5002", cfg.Listen)
	assert.Empty(t, cfg.AccountIDs())
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
gmail:
  - credentials_dir: /tmp/gmail
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5002", cfg.Listen)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, []string{"gmail"}, cfg.AccountIDs())
}

func TestLoadMalformedConfigErrors(t *testing.T) {
	path := writeConfig(t, "listen: [not closed\n")

	_, err := Load(path)
	assert.Error(t, err)
}
