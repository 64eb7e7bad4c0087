package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/schema"
	"github.com/coregx/sqlforge/internal/util"
)

// MonitorHandler receives the notifications of a Monitor. Either field may be nil.
type MonitorHandler struct {
	// OnTablesChanged is called when a monitored table reports a change.
	OnTablesChanged func()
	// OnNotify is called with the channel of a monitored value.
	OnNotify func(channel string)
}

// Monitor subscribes to change notifications for tables and single column
// values. Subscriptions are re-issued automatically after the connection is
// recovered.
//
// A table channel is the lower-case table name followed by "changed". A value
// channel is the value followed by "_" and an identifier derived from the
// column, so triggers on the server side can compute the same name.
type Monitor struct {
	db      *DB
	conn    adapter.Conn
	handler MonitorHandler

	mu     sync.Mutex
	tables []string
	values []string
	closed bool
}

// NewMonitor creates a Monitor on the database connection.
func (db *DB) NewMonitor(handler MonitorHandler) *Monitor {
	mon := &Monitor{db: db, conn: db.conn, handler: handler}
	db.manager.addMonitor(mon)
	db.startDispatch()
	return mon
}

// TableChannel returns the notification channel of a table.
func TableChannel(table string) string {
	return strings.ToLower(table) + "changed"
}

var braces = strings.NewReplacer("{", "", "}", "")

// ValueChannel returns the notification channel of one column value.
func ValueChannel(col schema.ColumnRef, value any) string {
	id := util.CreateIdentifier(strings.Replace(col.QualifiedName(), ".", "_", 1))
	return braces.Replace(fmt.Sprint(normalizeValue(value))) + "_" + id
}

// SetMonitorTables adds tables to the monitored set and subscribes their
// channels. Tables already monitored are skipped.
func (mon *Monitor) SetMonitorTables(tables ...string) error {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	for _, table := range tables {
		ch := TableChannel(table)
		if slices.Contains(mon.tables, ch) {
			continue
		}
		if err := mon.subscribe(ch); err != nil {
			return err
		}
		mon.tables = append(mon.tables, ch)
	}
	return nil
}

// AddValueMonitor subscribes to notifications for one value of col and
// returns the channel name.
func (mon *Monitor) AddValueMonitor(col schema.ColumnRef, value any) (string, error) {
	ch := ValueChannel(col, value)

	mon.mu.Lock()
	defer mon.mu.Unlock()

	if slices.Contains(mon.values, ch) {
		return ch, nil
	}
	if err := mon.subscribe(ch); err != nil {
		return "", err
	}
	mon.values = append(mon.values, ch)
	return ch, nil
}

// UnsubscribeValues drops every value subscription of the monitor.
func (mon *Monitor) UnsubscribeValues() error {
	mon.mu.Lock()
	values := mon.values
	mon.values = nil
	mon.mu.Unlock()

	var firstErr error
	for _, ch := range values {
		if mon.db.manager.channelInUse(mon, ch) {
			continue
		}
		if err := mon.conn.Unsubscribe(ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MonitoredTables returns the channels of the monitored tables.
func (mon *Monitor) MonitoredTables() []string {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return slices.Clone(mon.tables)
}

// MonitoredValues returns the channels of the monitored values.
func (mon *Monitor) MonitoredValues() []string {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return slices.Clone(mon.values)
}

// Close unregisters the monitor and drops the subscriptions no other
// monitor of the connection still needs.
func (mon *Monitor) Close() error {
	mon.mu.Lock()
	if mon.closed {
		mon.mu.Unlock()
		return nil
	}
	mon.closed = true
	channels := append(slices.Clone(mon.tables), mon.values...)
	mon.tables, mon.values = nil, nil
	mon.mu.Unlock()

	mon.db.manager.removeMonitor(mon)

	var firstErr error
	for _, ch := range channels {
		if mon.db.manager.channelInUse(mon, ch) {
			continue
		}
		if err := mon.conn.Unsubscribe(ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// subscribe issues a subscription unless the connection already has it.
// Caller holds mon.mu.
func (mon *Monitor) subscribe(ch string) error {
	if slices.Contains(mon.conn.Subscriptions(), ch) {
		return nil
	}
	return mon.conn.Subscribe(ch)
}

// resubscribe subscribes every monitored channel again and returns how many
// subscriptions were issued.
func (mon *Monitor) resubscribe() int {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	n := 0
	for _, ch := range append(slices.Clone(mon.tables), mon.values...) {
		if err := mon.subscribe(ch); err != nil {
			mon.db.logger.Warn("resubscribe failed",
				"conn_id", mon.conn.ID(),
				"channel", ch,
				"error", err,
			)
			continue
		}
		n++
	}
	return n
}

// watches reports whether the monitor holds ch.
func (mon *Monitor) watches(ch string) bool {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return slices.Contains(mon.tables, ch) || slices.Contains(mon.values, ch)
}

// notify dispatches one notification to the handler.
func (mon *Monitor) notify(ch string) {
	mon.mu.Lock()
	table := slices.Contains(mon.tables, strings.ToLower(ch))
	value := !table && slices.Contains(mon.values, ch)
	mon.mu.Unlock()

	switch {
	case table && mon.handler.OnTablesChanged != nil:
		mon.handler.OnTablesChanged()
	case value && mon.handler.OnNotify != nil:
		mon.handler.OnNotify(ch)
	}
}

// startDispatch starts the goroutine that fans notifications out to the
// monitors of the connection.
func (db *DB) startDispatch() {
	db.dispatchOnce.Do(func() {
		db.dispatchWG.Add(1)
		go db.dispatch(db.conn.Notifications())
	})
}

func (db *DB) dispatch(events <-chan adapter.Notification) {
	defer db.dispatchWG.Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, mon := range db.manager.monitorsOf(db.conn.ID()) {
				mon.notify(ev.Channel)
			}
		case <-db.done:
			return
		}
	}
}
