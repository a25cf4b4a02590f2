package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
)

// Work resolves GET /api/v1/works/*id. The id may be a bare DOI or a
// resolver URL; with citations_over_time=true the yearly citation totals
// are resolved alongside.
func (h *Handler) Work(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimPrefix(c.Param("id"), "/")
	resp := Response{Data: map[string]any{}}

	rec, err := h.connections.Work(ctx, id)
	if err != nil {
		h.logger.Debug("Work lookup failed", logger.String("id", id), logger.Error(err))
		resp.Data["work"] = nil
		resp.Errors = []FieldError{newFieldError(err, "work")}
		c.JSON(resp.status([]error{err}), resp)
		return
	}

	work := map[string]any{"record": rec}
	var errs []error
	if c.Query("citations_over_time") == "true" {
		years, yearsErr := h.events.CitationsOverTime(ctx, rec.UID)
		if yearsErr != nil {
			errs = append(errs, yearsErr)
			work["citationsOverTime"] = nil
			resp.Errors = append(resp.Errors, newFieldError(yearsErr, "work", "citationsOverTime"))
		} else {
			if years == nil {
				years = []domain.YearTotal{}
			}
			work["citationsOverTime"] = years
		}
	}
	resp.Data["work"] = work
	c.JSON(resp.status(errs), resp)
}

// Relation resolves GET /api/v1/relations. A missing relation is a null
// field, not an error.
func (h *Handler) Relation(c *gin.Context) {
	subj, obj := c.Query("subj_id"), c.Query("obj_id")
	if subj == "" || obj == "" {
		c.JSON(http.StatusBadRequest, Response{Errors: []FieldError{{
			Path:    []string{"relation"},
			Message: "subj_id and obj_id are required",
			Code:    CodeInvalidInput,
		}}})
		return
	}

	rel, err := h.events.Relation(c.Request.Context(), subj, obj, c.Query("source_id"))
	if err != nil {
		resp := Response{Data: map[string]any{"relation": nil}, Errors: []FieldError{newFieldError(err, "relation")}}
		c.JSON(resp.status([]error{err}), resp)
		return
	}
	if rel == nil {
		c.JSON(http.StatusOK, Response{Data: map[string]any{"relation": nil}})
		return
	}
	c.JSON(http.StatusOK, Response{Data: map[string]any{"relation": rel}})
}
