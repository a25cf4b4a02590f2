package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/connection"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/identifier"
)

const multiLevelFacet = "person_to_work_types_multilevel"

// ConnectionRequest selects one connection and the fields to resolve on it.
type ConnectionRequest struct {
	// Alias names the connection in the response; defaults to Name.
	Alias               string            `json:"alias,omitempty"`
	Name                string            `json:"name"                           binding:"required"`
	Query               string            `json:"query,omitempty"`
	First               *int              `json:"first,omitempty"`
	After               string            `json:"after,omitempty"`
	Filters             map[string]string `json:"filters,omitempty"`
	IncludeAggregations string            `json:"include_aggregations,omitempty"`
	FacetCount          *int              `json:"facet_count,omitempty"`
	FacetSizes          map[string]int    `json:"facet_sizes,omitempty"`
	Facets              []string          `json:"facets,omitempty"`
	Counts              []string          `json:"counts,omitempty"`
	SkipNodes           bool              `json:"skip_nodes,omitempty"`
}

// QueryRequest resolves several connections in one call. Connections with
// identical arguments share one search.
type QueryRequest struct {
	Connections []ConnectionRequest `json:"connections" binding:"required,min=1,dive"`
}

func (r ConnectionRequest) alias() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

func (r ConnectionRequest) args() connection.Args {
	return connection.Args{
		Query:               r.Query,
		Filters:             r.Filters,
		First:               r.First,
		After:               r.After,
		IncludeAggregations: r.IncludeAggregations,
		FacetCount:          r.FacetCount,
		FacetSizes:          r.FacetSizes,
	}
}

// reserved query parameters of GET /connections/:name; every other
// parameter is a filter.
var reserved = map[string]bool{
	"query": true, "first": true, "after": true, "include_aggregations": true,
	"facet_count": true, "facet_sizes": true, "facets": true, "counts": true, "skip_nodes": true,
}

// parseConnectionRequest reads the query string of GET /connections/:name.
// Malformed numeric arguments fall back to their defaults.
func parseConnectionRequest(c *gin.Context) ConnectionRequest {
	req := ConnectionRequest{
		Name:                c.Param("name"),
		Query:               c.Query("query"),
		After:               c.Query("after"),
		IncludeAggregations: c.Query("include_aggregations"),
		Facets:              identifier.SplitList(c.Query("facets")),
		Counts:              identifier.SplitList(c.Query("counts")),
		SkipNodes:           c.Query("skip_nodes") == "true",
		FacetSizes:          parseFacetSizes(c.Query("facet_sizes")),
		Filters:             map[string]string{},
	}
	req.First = optionalInt(c.Query("first"))
	req.FacetCount = optionalInt(c.Query("facet_count"))

	for key, values := range c.Request.URL.Query() {
		if reserved[key] || len(values) == 0 {
			continue
		}
		req.Filters[key] = strings.Join(values, ",")
	}
	return req
}

// optionalInt is nil for a blank or non-integer value.
func optionalInt(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}

// parseFacetSizes reads "authors:20,funders:5", skipping malformed items.
func parseFacetSizes(raw string) map[string]int {
	var sizes map[string]int
	for _, item := range identifier.SplitList(raw) {
		name, value, ok := strings.Cut(item, ":")
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if !ok || err != nil {
			continue
		}
		if sizes == nil {
			sizes = map[string]int{}
		}
		sizes[strings.TrimSpace(name)] = n
	}
	return sizes
}

// Connection resolves GET /api/v1/connections/:name.
func (h *Handler) Connection(c *gin.Context) {
	h.respond(c, []ConnectionRequest{parseConnectionRequest(c)})
}

// Query resolves POST /api/v1/query.
func (h *Handler) Query(c *gin.Context) {
	var body QueryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Warn("Invalid query request body", logger.Error(err))
		c.JSON(http.StatusBadRequest, Response{Errors: []FieldError{{
			Message: "Invalid request body: " + err.Error(),
			Code:    CodeInvalidInput,
		}}})
		return
	}
	if len(body.Connections) > h.maxConnections {
		c.JSON(http.StatusBadRequest, Response{Errors: []FieldError{{
			Message: fmt.Sprintf("at most %d connections per query", h.maxConnections),
			Code:    CodeInvalidInput,
		}}})
		return
	}
	h.respond(c, body.Connections)
}

func (h *Handler) respond(c *gin.Context, reqs []ConnectionRequest) {
	ctx := c.Request.Context()
	resp := Response{Data: make(map[string]any, len(reqs))}

	type resolved struct {
		data   map[string]any
		errs   []error
		fields []FieldError
	}
	results := make([]resolved, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, errs, fields := h.resolveConnection(ctx, req)
			results[i] = resolved{data: data, errs: errs, fields: fields}
		}()
	}
	wg.Wait()

	var errs []error
	for i, req := range reqs {
		r := results[i]
		if r.data == nil {
			resp.Data[req.alias()] = nil
		} else {
			resp.Data[req.alias()] = r.data
		}
		errs = append(errs, r.errs...)
		resp.Errors = append(resp.Errors, r.fields...)
	}

	c.JSON(resp.status(errs), resp)
}

// resolveConnection runs one connection. A failed search nulls the whole
// connection; a failed facet or count nulls only that field.
func (h *Handler) resolveConnection(ctx context.Context, req ConnectionRequest) (map[string]any, []error, []FieldError) {
	alias := req.alias()
	conn, err := h.connections.Resolve(ctx, req.Name, req.args())
	if err != nil {
		return nil, []error{err}, []FieldError{newFieldError(err, alias)}
	}

	var (
		errs   []error
		fields []FieldError
	)
	fail := func(err error, path ...string) {
		errs = append(errs, err)
		fields = append(fields, newFieldError(err, append([]string{alias}, path...)...))
	}

	data := map[string]any{
		"totalCount":        conn.TotalCount(),
		"pageInfo":          conn.PageInfo(),
		"totalOpenLicenses": conn.TotalOpenLicenses(),
		"totalContentUrl":   conn.TotalContentURL(),
		"aggregations":      conn.AggregationNames(),
	}

	if !req.SkipNodes {
		nodes, nodesErr := conn.Nodes()
		if nodesErr != nil {
			data["nodes"] = nil
			fail(nodesErr, "nodes")
		} else {
			data["nodes"] = nodes
		}
	}

	if len(req.Facets) > 0 {
		facets := make(map[string]any, len(req.Facets))
		for _, name := range req.Facets {
			var (
				value    any
				facetErr error
			)
			if name == multiLevelFacet {
				value, facetErr = conn.MultiFacet(name)
			} else {
				value, facetErr = conn.Facet(name)
			}
			if facetErr != nil {
				facets[name] = nil
				fail(facetErr, "facets", name)
				continue
			}
			facets[name] = value
		}
		data["facets"] = facets
	}

	if len(req.Counts) > 0 {
		counts := make(map[string]any, len(req.Counts))
		for _, name := range req.Counts {
			target, ok := connection.CountFields[name]
			if !ok {
				counts[name] = nil
				fail(fmt.Errorf("%w: unknown count %q", domain.ErrInvalidInput, name), "counts", name)
				continue
			}
			n, countErr := conn.ConnectionCount(ctx, target)
			if countErr != nil {
				counts[name] = nil
				fail(countErr, "counts", name)
				continue
			}
			counts[name] = n
		}
		data["counts"] = counts
	}

	if len(errs) > 0 {
		h.logger.Warn("Connection resolved with errors",
			logger.String("connection", req.Name),
			logger.Int("errors", len(errs)),
		)
	}
	return data, errs, fields
}
