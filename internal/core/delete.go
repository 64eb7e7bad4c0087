package core

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	stmt

	where Condition
	exact bool
}

// Only excludes tables inheriting from the target table.
func (dq *DeleteBuilder) Only(exact bool) *DeleteBuilder {
	dq.mutate()
	dq.exact = exact
	return dq
}

// Where sets the condition. Setting it twice panics.
func (dq *DeleteBuilder) Where(cond Condition) *DeleteBuilder {
	dq.mutate()
	if dq.where != nil {
		panic("sqlforge: WHERE already set")
	}
	dq.where = cond
	return dq
}

// SQL renders the statement once and returns its text.
func (dq *DeleteBuilder) SQL() string { return dq.assemble(dq.render) }

// Params returns the bound values in placeholder order.
func (dq *DeleteBuilder) Params() []any { return dq.params(dq.render) }

// Build returns the executable query. Repeated calls return the same Query.
func (dq *DeleteBuilder) Build() *Query { return dq.build(dq.render) }

// Invalidate unfreezes the statement and closes its query.
func (dq *DeleteBuilder) Invalidate() *DeleteBuilder {
	dq.invalidate()
	return dq
}

func (dq *DeleteBuilder) render() string {
	sql := "DELETE FROM " + dq.only(dq.exact) + dq.table
	if dq.where != nil {
		if where := dq.where.render(&dq.binder, dq.dialect, false); where != "" {
			sql += " WHERE " + where
		}
	}
	return sql
}
