package sqlxrepos

import (
	"strings"

	"github.com/trezcool/juku/core"
)

type repository struct {
	exec core.DBExecutor
}

// getExec returns the executor passed by the service (eg. a transaction), the repository's otherwise.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// orderBy builds an ORDER BY clause from the orderings whose field is in columns.
// columns maps the ordering field names to (qualified) column names; unknown fields are ignored.
func orderBy(ordering []core.DBOrdering, columns map[string]string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
