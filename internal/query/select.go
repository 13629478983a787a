package query

import (
	sq "github.com/Masterminds/squirrel"
)

// Select renders a SELECT over the planned tables filtered by cond. With no
// columns it selects the root identity.
func (p *Plan) Select(cond sq.Sqlizer, columns ...string) sq.SelectBuilder {
	if len(columns) == 0 {
		columns = []string{p.Root.PrimaryKey.Qualified()}
	}
	qb := sq.Select(columns...).From(QI(p.Table) + " " + QI(p.Alias))
	for _, j := range p.Joins {
		if j.Kind == JoinInner {
			qb = qb.InnerJoin(j.clause())
		} else {
			qb = qb.LeftJoin(j.clause())
		}
	}
	if cond != nil {
		qb = qb.Where(cond)
	}
	return qb
}

// Count renders SELECT count(*) over the planned tables filtered by cond.
func (p *Plan) Count(cond sq.Sqlizer) sq.SelectBuilder {
	return p.Select(cond, "count(*)")
}
