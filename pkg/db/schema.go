package db

import (
	"context"
	"fmt"
)

// schema is idempotent; safe to run on every start.
const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	config_blob   TEXT NOT NULL DEFAULT '',
	api_key_hash  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitors (
	id                    UUID PRIMARY KEY,
	tenant_id             UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name                  TEXT NOT NULL,
	url                   TEXT NOT NULL,
	interval_sec          INTEGER NOT NULL CHECK (interval_sec IN (60, 300)),
	timeout_ms            INTEGER NOT NULL CHECK (timeout_ms > 0),
	expected_status_codes INTEGER[] NOT NULL,
	locations             TEXT[] NOT NULL,
	failure_threshold     INTEGER NOT NULL CHECK (failure_threshold > 0),
	enabled               BOOLEAN NOT NULL DEFAULT TRUE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_monitors_tenant ON monitors(tenant_id);

CREATE TABLE IF NOT EXISTS check_results (
	id               UUID PRIMARY KEY,
	monitor_id       UUID NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
	location         TEXT NOT NULL,
	checked_at       TIMESTAMPTZ NOT NULL,
	success          BOOLEAN NOT NULL,
	response_time_ms BIGINT CHECK (response_time_ms >= 0),
	status_code      INTEGER CHECK (status_code BETWEEN 100 AND 599),
	error_message    TEXT CHECK (error_message <> ''),
	tls_issuer       TEXT,
	tls_subject      TEXT,
	tls_expires_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_check_results_monitor_time ON check_results(monitor_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id                   UUID PRIMARY KEY,
	tenant_id            UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	monitor_id           UUID NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
	type                 TEXT NOT NULL,
	triggered_at         TIMESTAMPTZ NOT NULL,
	resolved_at          TIMESTAMPTZ,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	message              TEXT NOT NULL,
	notification_status  JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_alerts_tenant_time ON alerts(tenant_id, triggered_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_open_failure
	ON alerts(monitor_id) WHERE type = 'FAILURE' AND resolved_at IS NULL;

CREATE TABLE IF NOT EXISTS notification_channels (
	id          UUID PRIMARY KEY,
	tenant_id   UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	config_blob TEXT NOT NULL,
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_channels_tenant ON notification_channels(tenant_id);

CREATE TABLE IF NOT EXISTS notification_deliveries (
	id            UUID PRIMARY KEY,
	tenant_id     UUID NOT NULL,
	alert_id      UUID NOT NULL,
	channel_id    UUID NOT NULL,
	attempt       INTEGER NOT NULL,
	success       BOOLEAN NOT NULL,
	terminal      BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	attempted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_deliveries_alert ON notification_deliveries(alert_id, attempted_at);
`

func Migrate(ctx context.Context, dbtx DBTX) error {
	if _, err := dbtx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
