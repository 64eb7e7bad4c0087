//go:build integration
// +build integration

package test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlforge"
)

func backendPID(t *testing.T, db *sqlforge.DB) int {
	t.Helper()
	q := db.Builder().NewQuery("SELECT pg_backend_pid()")
	defer q.Close()
	var pid int
	require.NoError(t, q.Row(&pid))
	return pid
}

func TestPostgres_Statements(t *testing.T) {
	setup := SetupPostgreSQLTestDB(t)
	defer setup.Close()
	db := setup.DB
	CreateUsersTable(t, db, setup.Dialect)
	InsertTestUsers(t, db, 3)

	qb := db.Builder()

	upd := qb.Update("users").Set("status", 2).Where(sqlforge.Eq("email", sqlforge.P(":email"))).Build()
	defer upd.Close()
	res, err := upd.Bind(":email", "usera@example.com").Execute()
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sel := qb.Select("name").From("users").
		Where(sqlforge.And(sqlforge.Eq("status", 2), sqlforge.Eq("name", "USER A").Fold())).
		Build()
	defer sel.Close()
	var name string
	require.NoError(t, sel.Row(&name))
	assert.Equal(t, "User A", name)

	del := qb.Delete("users").Only(true).Where(sqlforge.Lt("created_at", sqlforge.Now)).Build()
	defer del.Close()
	res, err = del.Execute()
	require.NoError(t, err)
	n, err = res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPostgres_RecoversTerminatedSession(t *testing.T) {
	setup := SetupPostgreSQLTestDB(t)
	defer setup.Close()
	db := setup.DB
	CreateUsersTable(t, db, setup.Dialect)
	InsertTestUsers(t, db, 1)

	q := db.Builder().Select("name").From("users").Where(sqlforge.Eq("id", sqlforge.P(":id"))).Build()
	defer q.Close()
	var name string
	require.NoError(t, q.Bind(":id", 1).Row(&name))

	before := backendPID(t, db)

	admin, err := sql.Open("postgres", setup.DSN)
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.Exec("SELECT pg_terminate_backend($1)", before)
	require.NoError(t, err)

	// The live statement is re-prepared on the new session with its binding.
	require.NoError(t, q.Row(&name))
	assert.Equal(t, "User A", name)
	assert.NotEqual(t, before, backendPID(t, db))
	assert.Equal(t, "alive", db.Manager().State(db.Conn().ID()).String())
}

func TestPostgres_TransactionLostOnTermination(t *testing.T) {
	setup := SetupPostgreSQLTestDB(t)
	defer setup.Close()
	db := setup.DB
	CreateUsersTable(t, db, setup.Dialect)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Close()
	InsertTestUsers(t, db, 1)

	admin, err := sql.Open("postgres", setup.DSN)
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.Exec("SELECT pg_terminate_backend($1)", backendPID(t, db))
	require.NoError(t, err)

	_, err = db.Exec(ctx, "INSERT INTO users (name, email) VALUES (:name, :email)",
		sqlforge.Params{"name": "late", "email": "late@example.com"})
	require.ErrorIs(t, err, sqlforge.ErrTxLost)
	require.ErrorIs(t, tx.Commit(), sqlforge.ErrTxLost)

	count := db.Builder().Select("count(*)").From("users").Build()
	defer count.Close()
	var n int
	require.NoError(t, count.Row(&n))
	assert.Zero(t, n, "work inside the lost transaction is gone")
}

func TestPostgres_LockErrorNoWait(t *testing.T) {
	setup := SetupPostgreSQLTestDB(t)
	defer setup.Close()
	CreateUsersTable(t, setup.DB, setup.Dialect)
	InsertTestUsers(t, setup.DB, 1)
	ctx := context.Background()

	holder := setup.DB
	tx, err := holder.Begin(ctx)
	require.NoError(t, err)
	defer tx.Close()

	lock := holder.Builder().Select("id").From("users").Where(sqlforge.Eq("id", 1)).ForUpdateOf("users").Build()
	defer lock.Close()
	var id int
	require.NoError(t, lock.Row(&id))

	other, err := sqlforge.Open("postgres", setup.DSN)
	require.NoError(t, err)
	defer other.Close()

	q := other.Builder().Select("id").From("users").Where(sqlforge.Eq("id", 1)).ForUpdateOf("users").NoWait().Build()
	defer q.Close()
	err = q.Row(&id)
	require.Error(t, err)
	assert.True(t, sqlforge.IsLockError(err))
	assert.False(t, sqlforge.IsConnectionError(err))
}

func TestPostgres_MonitorNotifications(t *testing.T) {
	setup := SetupPostgreSQLTestDB(t)
	defer setup.Close()
	db := setup.DB

	tables := make(chan struct{}, 1)
	values := make(chan string, 1)
	mon := db.NewMonitor(sqlforge.MonitorHandler{
		OnTablesChanged: func() { tables <- struct{}{} },
		OnNotify:        func(ch string) { values <- ch },
	})
	defer mon.Close()

	require.NoError(t, mon.SetMonitorTables("users"))
	userID := sqlforge.NewTable("users").Column("id", sqlforge.TypeInt, sqlforge.PrimaryKey)
	ch, err := mon.AddValueMonitor(userID, 7)
	require.NoError(t, err)

	admin, err := sql.Open("postgres", setup.DSN)
	require.NoError(t, err)
	defer admin.Close()

	_, err = admin.Exec("NOTIFY " + sqlforge.TableChannel("users"))
	require.NoError(t, err)
	select {
	case <-tables:
	case <-time.After(5 * time.Second):
		t.Fatal("table notification not delivered")
	}

	_, err = admin.Exec(`NOTIFY "` + ch + `"`)
	require.NoError(t, err)
	select {
	case got := <-values:
		assert.Equal(t, ch, got)
	case <-time.After(5 * time.Second):
		t.Fatal("value notification not delivered")
	}
}
