package core

import (
	"context"

	"github.com/coregx/sqlforge/internal/dialects"
)

// QueryBuilder creates statement builders for one database handle or, when
// detached, for rendering only.
type QueryBuilder struct {
	db      *DB
	dialect dialects.Dialect
	ctx     context.Context // context for all queries built by this builder
}

// NewQueryBuilder creates a detached builder for the named dialect. Statements
// it builds render SQL but cannot execute; their queries return ErrNotAttached.
func NewQueryBuilder(dialect string) *QueryBuilder {
	return &QueryBuilder{dialect: dialects.GetDialect(dialect)}
}

// WithContext sets the context for all queries built by this builder.
// The context will be used for all subsequent query operations unless overridden.
func (qb *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	qb.ctx = ctx
	return qb
}

// Dialect returns the dialect statements are rendered for.
func (qb *QueryBuilder) Dialect() dialects.Dialect { return qb.dialect }

// Select creates a SELECT builder for the given columns.
func (qb *QueryBuilder) Select(cols ...any) *SelectBuilder {
	sb := &SelectBuilder{stmt: qb.newStmt("")}
	sb.resetLimit()
	return sb.Columns(cols...)
}

// Insert creates an INSERT builder for table.
func (qb *QueryBuilder) Insert(table any) *InsertBuilder {
	return &InsertBuilder{stmt: qb.newStmt(tableName(table))}
}

// Update creates an UPDATE builder for table.
func (qb *QueryBuilder) Update(table any) *UpdateBuilder {
	return &UpdateBuilder{stmt: qb.newStmt(tableName(table))}
}

// Delete creates a DELETE builder for table.
func (qb *QueryBuilder) Delete(table any) *DeleteBuilder {
	return &DeleteBuilder{stmt: qb.newStmt(tableName(table))}
}

// NewQuery creates a query from hand-written SQL. Named placeholders use the
// ":name" form and are bound with Query.Bind; "{{table}}" and "[[column]]" are
// quoted for the dialect.
func (qb *QueryBuilder) NewQuery(sql string) *Query {
	q := newQuery(qb.db, expandIdentifiers(sql, qb.dialect), nil, 0)
	q.ctx = qb.ctx
	return q
}

func (qb *QueryBuilder) newStmt(table string) stmt {
	return stmt{db: qb.db, dialect: qb.dialect, table: table, ctx: qb.ctx}
}

// stmt is the state shared by the four statement builders.
//
// The first call to SQL, Params or Build renders the statement and freezes it.
// Mutating a frozen statement panics until Invalidate is called.
type stmt struct {
	db        *DB
	dialect   dialects.Dialect
	table     string
	ctx       context.Context
	binder    Binder
	assembled bool
	sql       string
	query     *Query
}

func (s *stmt) mutate() {
	if s.assembled {
		panic("sqlforge: statement already assembled, call Invalidate first")
	}
}

func (s *stmt) invalidate() {
	s.assembled = false
	s.sql = ""
	if s.query != nil {
		_ = s.query.Close()
		s.query = nil
	}
}

// assemble renders once and memoizes the text. Numbering restarts at the
// binder offset on every render.
func (s *stmt) assemble(render func() string) string {
	if !s.assembled {
		s.binder.Reset()
		s.sql = render()
		checkPlaceholders(s.sql, &s.binder)
		s.assembled = true
	}
	return s.sql
}

func (s *stmt) build(render func() string) *Query {
	sql := s.assemble(render)
	if s.query == nil {
		s.query = newQuery(s.db, sql, s.binder.Values(), s.binder.Offset())
		s.query.ctx = s.ctx
	}
	return s.query
}

func (s *stmt) params(render func() string) []any {
	s.assemble(render)
	return s.binder.Values()
}

// only renders the ONLY keyword for dialects with table inheritance.
func (s *stmt) only(exact bool) string {
	if exact && s.dialect.SupportsOnly() {
		return "ONLY "
	}
	return ""
}
