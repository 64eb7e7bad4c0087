//go:build integration
// +build integration

package test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlforge"
)

func TestMySQL_WrapDB(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()
	CreateUsersTable(t, setup.DB, setup.Dialect)

	sqlDB, err := sql.Open("mysql", setup.DSN)
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := sqlforge.WrapDB(sqlDB, "mysql", sqlforge.WithConnectionID("wrapped"))
	require.NoError(t, err)
	defer db.Close()

	InsertTestUsers(t, db, 2)

	q := db.Builder().Select("name").From("users").
		Where(sqlforge.Or(sqlforge.Eq("id", sqlforge.P(":id")), sqlforge.Eq("status", sqlforge.P(":id")))).
		Build()
	defer q.Close()

	var name string
	require.NoError(t, q.Bind(":id", 2).Row(&name))
	assert.Equal(t, "User B", name)

	// Closing the handle leaves the caller's pool usable.
	require.NoError(t, db.Close())
	require.NoError(t, sqlDB.PingContext(context.Background()))
}

func TestMySQL_NestedTransactionRollback(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()
	db := setup.DB
	CreateUsersTable(t, db, setup.Dialect)
	ctx := context.Background()

	err := db.Transactional(ctx, func(tx *sqlforge.Tx) error {
		InsertTestUsers(t, db, 1)
		return db.Transactional(ctx, func(inner *sqlforge.Tx) error {
			_, err := db.Exec(ctx, "INSERT INTO users (name, email) VALUES (:name, :email)",
				sqlforge.Params{"name": "dup", "email": "usera@example.com"})
			return err
		})
	})
	var dbErr *sqlforge.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, sqlforge.KindDatabase, dbErr.Kind)

	count := db.Builder().Select("count(*)").From("users").Build()
	defer count.Close()
	var n int
	require.NoError(t, count.Row(&n))
	assert.Zero(t, n)
}
