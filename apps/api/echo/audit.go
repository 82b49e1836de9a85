package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/audit"
)

type auditApi struct {
	svc *audit.Service
}

func registerAuditAPI(g *echo.Group, deps ServerDeps) {
	api := auditApi{svc: deps.AuditSvc}

	g.GET("/audit", api.query, permissionMiddleware("audit.read"))
}

// Handlers

func (api *auditApi) query(ctx echo.Context) error {
	filter := new(audit.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []audit.Record{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), ctx.Param("tid"), filter)
	if err != nil {
		return errors.Wrap(err, "querying audit records")
	}
	if recs == nil {
		recs = []audit.Record{}
	}

	// records come most recent first; ?ordering=created_at flips to oldest first
	for _, ord := range ordering.Orderings {
		if ord.Field == "created_at" && ord.Ascending {
			for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
				recs[i], recs[j] = recs[j], recs[i]
			}
		}
	}
	return ctx.JSON(http.StatusOK, recs)
}
