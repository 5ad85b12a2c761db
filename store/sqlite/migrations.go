package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tally store (SQLite).
var Migrations = migrate.NewGroup("tally")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tally_subscriptions",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_subscriptions (
    id                        TEXT PRIMARY KEY,
    user_id                   TEXT NOT NULL DEFAULT '',
    tier                      TEXT NOT NULL DEFAULT 'free',
    status                    TEXT NOT NULL DEFAULT 'active',
    generation_attempts_used  INTEGER NOT NULL DEFAULT 0,
    generation_attempts_limit INTEGER NOT NULL DEFAULT 0,
    saved_resumes_count       INTEGER NOT NULL DEFAULT 0,
    saved_resumes_limit       INTEGER NOT NULL DEFAULT 0,
    monthly_resumes_created   INTEGER NOT NULL DEFAULT 0,
    monthly_resumes_limit     INTEGER NOT NULL DEFAULT 0,
    current_period_start      TEXT,
    current_period_end        TEXT,
    customer_ref              TEXT NOT NULL DEFAULT '',
    subscription_ref          TEXT NOT NULL DEFAULT '',
    payment_ref               TEXT NOT NULL DEFAULT '',
    last_billing_event_id     TEXT NOT NULL DEFAULT '',
    metadata                  TEXT NOT NULL DEFAULT '{}',
    created_at                TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at                TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_subs_user ON tally_subscriptions (user_id);
CREATE INDEX IF NOT EXISTS idx_tally_subs_status ON tally_subscriptions (status);
CREATE INDEX IF NOT EXISTS idx_tally_subs_period_end ON tally_subscriptions (current_period_end);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_resumes",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_resumes (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL DEFAULT '',
    title          TEXT NOT NULL DEFAULT '',
    role           TEXT NOT NULL DEFAULT '',
    template       TEXT NOT NULL DEFAULT '',
    tokens_used    INTEGER NOT NULL DEFAULT 0,
    cost_amount    INTEGER NOT NULL DEFAULT 0,
    cost_currency  TEXT NOT NULL DEFAULT '',
    model_id       TEXT NOT NULL DEFAULT '',
    pdf_expires_at TEXT,
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tally_resumes_user ON tally_resumes (user_id);
CREATE INDEX IF NOT EXISTS idx_tally_resumes_expiry ON tally_resumes (pdf_expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_resumes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_job_descriptions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_job_descriptions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL DEFAULT '',
    usage_count  INTEGER NOT NULL DEFAULT 0,
    last_used_at TEXT,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tally_jds_user ON tally_job_descriptions (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_job_descriptions`)
				return err
			},
		},
	)
}
