package database

// Schema is the durable store layout. The unique index on
// alert_log.content_hash is what makes alert deduplication safe across
// concurrent monitor tasks: a second insert with the same hash is rejected by
// the database no matter which writer got there first.
const Schema = `
CREATE TABLE IF NOT EXISTS app_user (
    user_id                  TEXT PRIMARY KEY,
    name                     TEXT NOT NULL DEFAULT '',
    push_token               TEXT NOT NULL DEFAULT '',
    notification_frequency   TEXT NOT NULL DEFAULT 'balanced',
    notification_sensitivity TEXT NOT NULL DEFAULT 'curious',
    weekly_summary           INTEGER NOT NULL DEFAULT 0,
    mode                     TEXT NOT NULL DEFAULT 'beginner',
    max_daily_pushes         INTEGER NOT NULL DEFAULT 5,
    created_at               TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at               TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS holding (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    symbol     TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    allocation REAL,
    note       TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS price_point (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol         TEXT NOT NULL,
    price          REAL NOT NULL,
    change_percent REAL,
    volume         INTEGER,
    timestamp      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_point_symbol_ts ON price_point (symbol, timestamp);

CREATE TABLE IF NOT EXISTS alert_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      TEXT NOT NULL,
    alert_type   TEXT NOT NULL,
    symbol       TEXT,
    content_hash TEXT NOT NULL UNIQUE,
    title        TEXT NOT NULL,
    message      TEXT NOT NULL,
    url          TEXT,
    metadata     TEXT,
    sent_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_log_user_sent ON alert_log (user_id, sent_at);

CREATE TABLE IF NOT EXISTS news_item (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol       TEXT NOT NULL,
    title        TEXT NOT NULL,
    source       TEXT NOT NULL,
    source_tier  INTEGER NOT NULL,
    url          TEXT NOT NULL UNIQUE,
    content_hash TEXT NOT NULL UNIQUE,
    published_at TIMESTAMP,
    fetched_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS social_mention (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol        TEXT NOT NULL,
    mention_count INTEGER NOT NULL,
    subreddit     TEXT NOT NULL,
    period_start  TIMESTAMP NOT NULL,
    period_end    TIMESTAMP NOT NULL,
    baseline_7day REAL
);
CREATE INDEX IF NOT EXISTS idx_social_symbol_period ON social_mention (symbol, period_start);

CREATE TABLE IF NOT EXISTS digest_item (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    symbol     TEXT,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_digest_item_user ON digest_item (user_id, created_at);

CREATE TABLE IF NOT EXISTS feed_cache (
    user_id  TEXT PRIMARY KEY,
    payload  BLOB NOT NULL,
    built_at TIMESTAMP NOT NULL
);
`
