package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/schema"
	"github.com/coregx/sqlforge/internal/util"
)

func TestMonitor_Channels(t *testing.T) {
	userID := schema.NewTable("users").Column("id", schema.Int, schema.PrimaryKey)

	assert.Equal(t, "userschanged", TableChannel("Users"))
	assert.Equal(t, "42_"+util.CreateIdentifier("users_id"), ValueChannel(userID, 42))
	assert.Equal(t, "abc_"+util.CreateIdentifier("users_id"), ValueChannel(userID, "{abc}"))
}

func TestMonitor_SubscribeAndResubscribe(t *testing.T) {
	db, conn := newFakeDB(t)
	userID := schema.NewTable("users").Column("id", schema.Int, schema.PrimaryKey)

	mon := db.NewMonitor(MonitorHandler{})
	require.NoError(t, mon.SetMonitorTables("Users", "orders", "users"))
	ch, err := mon.AddValueMonitor(userID, 7)
	require.NoError(t, err)

	want := []string{ch, "orderschanged", "userschanged"}
	assert.ElementsMatch(t, want, conn.Subscriptions())
	assert.Equal(t, []string{"userschanged", "orderschanged"}, mon.MonitoredTables())
	assert.Equal(t, []string{ch}, mon.MonitoredValues())

	conn.drop()
	require.NoError(t, db.Manager().CheckAlive(context.Background(), conn))
	assert.ElementsMatch(t, want, conn.Subscriptions(), "subscriptions restored after reconnect")

	require.NoError(t, mon.UnsubscribeValues())
	assert.ElementsMatch(t, []string{"orderschanged", "userschanged"}, conn.Subscriptions())

	require.NoError(t, mon.Close())
	assert.Empty(t, conn.Subscriptions())
	assert.Equal(t, 0, db.Manager().MonitorCount())
}

func TestMonitor_SharedChannelKeptUntilLastClose(t *testing.T) {
	db, conn := newFakeDB(t)

	a := db.NewMonitor(MonitorHandler{})
	b := db.NewMonitor(MonitorHandler{})
	require.NoError(t, a.SetMonitorTables("users"))
	require.NoError(t, b.SetMonitorTables("users"))

	require.NoError(t, a.Close())
	assert.Equal(t, []string{"userschanged"}, conn.Subscriptions())
	require.NoError(t, b.Close())
	assert.Empty(t, conn.Subscriptions())
}

func TestMonitor_Dispatch(t *testing.T) {
	db, conn := newFakeDB(t)
	userID := schema.NewTable("users").Column("id", schema.Int, schema.PrimaryKey)

	tables := make(chan struct{}, 1)
	values := make(chan string, 1)
	mon := db.NewMonitor(MonitorHandler{
		OnTablesChanged: func() { tables <- struct{}{} },
		OnNotify:        func(ch string) { values <- ch },
	})
	defer mon.Close()

	require.NoError(t, mon.SetMonitorTables("users"))
	ch, err := mon.AddValueMonitor(userID, 1)
	require.NoError(t, err)

	conn.notes <- adapter.Notification{Channel: "other"}
	conn.notes <- adapter.Notification{Channel: "USERSCHANGED"}
	select {
	case <-tables:
	case <-time.After(time.Second):
		t.Fatal("table change not dispatched")
	}

	conn.notes <- adapter.Notification{Channel: ch}
	select {
	case got := <-values:
		assert.Equal(t, ch, got)
	case <-time.After(time.Second):
		t.Fatal("value change not dispatched")
	}
}
