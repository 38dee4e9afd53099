package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arkofgod/ark/core"
)

const uniqueViolation = "23505"

// getExec returns the transaction handed over by a core.Transactor, or db.
func getExec(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if ext, ok := exec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}

// uniqueConstraint returns the name of the violated unique constraint, if err is one.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// orderBy builds an ORDER BY clause out of the allowed orderings only.
func orderBy(orderings []core.DBOrdering, allowed map[string]bool, fallback string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if allowed[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// add appends cond, where `?` stands for the next positional argument.
func (wb *whereBuilder) add(cond string, args ...interface{}) {
	for _, arg := range args {
		wb.args = append(wb.args, arg)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(wb.args)), 1)
	}
	wb.conds = append(wb.conds, cond)
}

func (wb *whereBuilder) String() string {
	if len(wb.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(wb.conds, " AND ")
}
