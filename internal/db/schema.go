package db

// Schema is the DDL for the unibox database.
//
// status values are fixed: 0=unread, 1=pending, 2=important. External
// reporting tools read these numbers directly, so they must never be
// renumbered.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account     TEXT NOT NULL,
    external_id TEXT NOT NULL UNIQUE,
    subject     TEXT,
    sender      TEXT,
    preview     TEXT,
    received_at TEXT NOT NULL,
    status      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_account ON items(account);
CREATE INDEX IF NOT EXISTS idx_items_status ON items(status, received_at);
CREATE INDEX IF NOT EXISTS idx_items_received ON items(received_at);
`
