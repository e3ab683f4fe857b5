package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Entitle store (PostgreSQL).
var Migrations = migrate.NewGroup("entitle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_entitle_subscriptions",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_subscriptions (
    id                    TEXT PRIMARY KEY,
    principal             TEXT NOT NULL DEFAULT '',
    tier                  TEXT NOT NULL DEFAULT 'free',
    period_start          TIMESTAMPTZ NOT NULL DEFAULT now(),
    period_end            TIMESTAMPTZ NOT NULL DEFAULT now(),
    messages_used         BIGINT NOT NULL DEFAULT 0,
    premium_messages_used BIGINT NOT NULL DEFAULT 0,
    active                BOOLEAN NOT NULL DEFAULT TRUE,
    last_payment_ref      TEXT NOT NULL DEFAULT '',
    version               BIGINT NOT NULL DEFAULT 0,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entitle_subs_principal ON entitle_subscriptions (principal);
CREATE INDEX IF NOT EXISTS idx_entitle_subs_tier ON entitle_subscriptions (tier);
CREATE INDEX IF NOT EXISTS idx_entitle_subs_period_end ON entitle_subscriptions (period_end);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_signatures",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_signatures (
    tx_signature TEXT PRIMARY KEY,
    id           TEXT NOT NULL DEFAULT '',
    principal    TEXT NOT NULL DEFAULT '',
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entitle_sigs_principal ON entitle_signatures (principal);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_signatures`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_usage_events",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_usage_events (
    id            TEXT PRIMARY KEY,
    principal     TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    premium       BOOLEAN NOT NULL DEFAULT FALSE,
    input_tokens  BIGINT NOT NULL DEFAULT 0,
    output_tokens BIGINT NOT NULL DEFAULT 0,
    timestamp     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entitle_usage_principal ON entitle_usage_events (principal, timestamp);
CREATE INDEX IF NOT EXISTS idx_entitle_usage_timestamp ON entitle_usage_events (timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_usage_events`)
				return err
			},
		},
	)
}
