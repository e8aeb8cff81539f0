package postgres_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spounge-ai/auditchain/pkg/postgres"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "audit_entries_previous_hash_key"})

	assert.True(t, postgres.IsUniqueViolation(unique, ""))
	assert.True(t, postgres.IsUniqueViolation(unique, "audit_entries_previous_hash_key"))
	assert.False(t, postgres.IsUniqueViolation(unique, "audit_entries_pkey"))
	assert.False(t, postgres.IsUniqueViolation(errors.New("plain"), ""))

	assert.True(t, postgres.IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.False(t, postgres.IsSerializationFailure(unique))
}
