package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/export"
	"github.com/platinummonkey/pfcatalog/pkg/httputil"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
)

// listHandler handles GET of a normalized collection
func listHandler[T normalize.Tabular](s *Server, columns []string, list func(context.Context, string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, ok := fetchRecords(s, w, r, columns, list)
		if !ok {
			return
		}
		httputil.WriteJSONOrError(w, http.StatusOK, records, "failed to encode response")
	}
}

// exportHandler handles GET of a collection as an xlsx download
func exportHandler[T normalize.Tabular](s *Server, dataset string, columns []string, list func(context.Context, string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, ok := fetchRecords(s, w, r, columns, list)
		if !ok {
			s.metrics.RecordExport(dataset, "rejected")
			return
		}

		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, export.SheetName, columns, records); err != nil {
			s.metrics.RecordExport(dataset, "failed")
			observability.FromContext(r.Context()).WithError(err).Error("export failed")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "export failed")
			return
		}

		s.metrics.RecordExport(dataset, "success")
		envName := httputil.ParseQueryString(r, "env", "")
		_ = httputil.WriteAttachment(w, export.ContentTypeXLSX, export.Filename(dataset, envName), buf.Bytes())
	}
}

// fetchRecords lists the requested environment and applies filters. On
// failure it writes the error response and returns false.
func fetchRecords[T normalize.Tabular](s *Server, w http.ResponseWriter, r *http.Request, columns []string, list func(context.Context, string) ([]T, error)) ([]T, bool) {
	filter, err := normalize.ParseFilter(r.URL.Query()["filter"])
	if err == nil {
		err = filter.Validate(columns)
	}
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}

	envName := httputil.ParseQueryString(r, "env", "")
	ctx := observability.WithEnvironment(r.Context(), envName)

	records, err := list(ctx, envName)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return nil, false
	}
	return normalize.Apply(records, filter), true
}

// writeCatalogError maps catalog errors to responses
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, config.ErrUnknownEnvironment):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, catalog.ErrUpstream):
		observability.FromContext(r.Context()).WithError(err).Warn("upstream request failed")
		httputil.WriteBadGateway(w, catalog.ErrUpstream.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("catalog request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// listEnvironments handles GET /environments
func (s *Server) listEnvironments(w http.ResponseWriter, r *http.Request) {
	names := s.catalog.Environments()
	if names == nil {
		names = []string{}
	}
	_ = httputil.WriteSuccess(w, EnvironmentsResponse{Environments: names})
}

// cacheStatus handles GET /cache/status
func (s *Server) cacheStatus(w http.ResponseWriter, r *http.Request) {
	populate, ok := httputil.ParseQueryBoolOrError(w, r, "populate", false)
	if !ok {
		return
	}
	envName := httputil.ParseQueryString(r, "env", "")

	statuses, err := s.catalog.CacheStatus(r.Context(), envName, populate)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, CacheStatusResponse{References: statuses})
}
