package postgres

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	raw, err := migrationsFS.ReadFile(migrationsDir + "/" + name)
	require.NoError(t, err)
	return string(raw)
}

func TestMigrations_NamesAndOrder(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, slices.IsSorted(names))
	for _, n := range names {
		assert.Regexp(t, migrationName, n)
	}
}

func TestMigrations_UpAndDown(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	for _, n := range names {
		sql := readMigration(t, n)
		up := strings.Index(sql, "-- +goose Up")
		down := strings.Index(sql, "-- +goose Down")
		assert.GreaterOrEqual(t, up, 0, n)
		assert.Greater(t, down, up, n)
		assert.Equal(t,
			strings.Count(sql, "-- +goose StatementBegin"),
			strings.Count(sql, "-- +goose StatementEnd"), n)
	}
}

func TestMigrations_LedgerConstraints(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	var all strings.Builder
	for _, n := range names {
		all.WriteString(readMigration(t, n))
	}
	sql := all.String()

	for _, want := range []string{
		"CONSTRAINT uq_stock_movements_ref UNIQUE (source_kind, source_id, direction, idempotency_key)",
		"BEFORE UPDATE OR DELETE ON stock_movements",
		"PRIMARY KEY (warehouse_id, product_id, lot_id)",
		"CHECK (reserved >= 0)",
		"CHECK (origin_warehouse_id <> destination_warehouse_id)",
		"REFERENCES transfers(id) ON DELETE CASCADE",
		"quantity_received <= quantity_requested",
	} {
		assert.Contains(t, sql, want)
	}
}

func TestMigrate_RequiresDB(t *testing.T) {
	err := Migrate(context.Background(), nil, "up")
	require.Error(t, err)
}

func TestLimitArg(t *testing.T) {
	assert.Nil(t, limitArg(0))
	assert.Nil(t, limitArg(-3))
	assert.Equal(t, 25, limitArg(25))
}
