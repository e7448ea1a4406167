package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "gateway", Password: "secret", Database: "gateway", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=gateway password=secret dbname=gateway sslmode=disable", cfg.DSN())
}

func TestConfig_ValidateRequiresPassword(t *testing.T) {
	cfg := Config{MaxOpenConns: 10}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "DB_PASSWORD")
}

func TestConfig_ValidateRejectsIdleExceedingOpen(t *testing.T) {
	cfg := Config{Password: "x", MaxOpenConns: 5, MaxIdleConns: 10}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "DB_MAX_IDLE_CONNS")
}

func TestHasEmbeddedMigrations_FindsSQLFiles(t *testing.T) {
	ok, err := hasEmbeddedMigrations()
	assert.NoError(t, err)
	assert.True(t, ok, "migrations directory must embed at least one .sql file")
}
