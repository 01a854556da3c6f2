package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/learnsmart/core"
)

const (
	limitParam  = "limit"
	offsetParam = "offset"
)

var scopeParams = [...]string{"course", "branch", "semester"}

// bindScope reads the optional course/branch/semester query filter.
func bindScope(ctx echo.Context) core.Scope {
	scope := core.Scope{
		Course:   ctx.QueryParam(scopeParams[0]),
		Branch:   ctx.QueryParam(scopeParams[1]),
		Semester: ctx.QueryParam(scopeParams[2]),
	}
	scope.Clean()
	return scope
}

// bindPage reads the `limit` and `offset` query params; malformed values fall back to the defaults.
func bindPage(ctx echo.Context) core.Page {
	var page core.Page
	if v, err := strconv.Atoi(strings.TrimSpace(ctx.QueryParam(limitParam))); err == nil {
		page.Limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(ctx.QueryParam(offsetParam))); err == nil {
		page.Offset = v
	}
	page.Clean()
	return page
}

var orderingParam = "ordering"

// Ordering is bound from `?ordering=email,-created_at`; a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
