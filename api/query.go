package api

import (
	"encoding/json"
	"net/http"
	"time"

	"hermannm.dev/insights/insightsquery"
	"hermannm.dev/insights/schema"
	"hermannm.dev/insights/warehouse"
)

// Endpoint for listing session recordings matching a set of filters.
func (api InsightsAPI) QueryRecordings(res http.ResponseWriter, req *http.Request) {
	var query schema.RecordingsQuery
	if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
		sendError("failed to parse recordings query from request body", http.StatusBadRequest, err, res)
		return
	}

	response, err := insightsquery.RunRecordingsQuery(
		req.Context(), api.db, query, nil, time.Now(),
	)
	if err != nil {
		sendError("recordings query failed", http.StatusInternalServerError, err, res)
		return
	}

	sendJSON(response, res)
}

type trendsRequest struct {
	schema.TrendsQuery
	// Joins declared on the queried warehouse tables, for breakdowns that reference
	// joined tables.
	Joins []warehouse.JoinDeclaration `json:"joins,omitempty"`
}

// Endpoint for computing per-day trends over data warehouse tables.
func (api InsightsAPI) QueryTrends(res http.ResponseWriter, req *http.Request) {
	var request trendsRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		sendError("failed to parse trends query from request body", http.StatusBadRequest, err, res)
		return
	}

	response, err := insightsquery.RunTrendsQuery(
		req.Context(), api.db, request.TrendsQuery, request.Joins, time.Now(),
	)
	if err != nil {
		sendError("trends query failed", http.StatusInternalServerError, err, res)
		return
	}

	sendJSON(response, res)
}

type revenueRequest struct {
	Tables []insightsquery.RevenueWarehouseTable `json:"tables"`
	Limit  int                                   `json:"limit,omitempty"`
}

// Endpoint for listing recent revenue entries across the configured warehouse tables.
func (api InsightsAPI) QueryRevenueTables(res http.ResponseWriter, req *http.Request) {
	var request revenueRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		sendError("failed to parse revenue query from request body", http.StatusBadRequest, err, res)
		return
	}

	response, err := insightsquery.RunRevenueTablesQuery(
		req.Context(), api.db, request.Tables, request.Limit,
	)
	if err != nil {
		sendError("revenue query failed", http.StatusInternalServerError, err, res)
		return
	}

	sendJSON(response, res)
}

// Endpoint for reading a playlist's cached session count, as maintained by the count
// recomputation task.
func (api InsightsAPI) GetPlaylistCount(res http.ResponseWriter, req *http.Request) {
	shortID := req.URL.Query().Get("short_id")
	if shortID == "" {
		sendError("missing query parameter 'short_id'", http.StatusBadRequest, nil, res)
		return
	}

	record, found, err := api.countCache.Get(req.Context(), shortID)
	if err != nil {
		sendError("failed to read cached playlist count", http.StatusInternalServerError, err, res)
		return
	}
	if !found {
		sendError("no cached count for playlist", http.StatusNotFound, nil, res)
		return
	}

	sendJSON(record, res)
}
