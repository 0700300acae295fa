package api

import (
	"fmt"
	"net/http"

	"hermannm.dev/insights/config"
	"hermannm.dev/insights/counter"
	"hermannm.dev/insights/db"
)

type InsightsAPI struct {
	db         db.InsightsDB
	countCache *counter.CountCache
	router     *http.ServeMux
	config     config.API
}

func NewInsightsAPI(
	db db.InsightsDB,
	countCache *counter.CountCache,
	router *http.ServeMux,
	config config.API,
) InsightsAPI {
	api := InsightsAPI{db: db, countCache: countCache, router: router, config: config}

	api.router.HandleFunc("/query/recordings", api.QueryRecordings)
	api.router.HandleFunc("/query/trends", api.QueryTrends)
	api.router.HandleFunc("/query/revenue", api.QueryRevenueTables)
	api.router.HandleFunc("/playlist-count", api.GetPlaylistCount)

	return api
}

func (api InsightsAPI) ListenAndServe() error {
	return http.ListenAndServe(fmt.Sprintf(":%s", api.config.Port), api.router)
}
