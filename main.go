package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
	"hermannm.dev/insights/api"
	"hermannm.dev/insights/config"
	"hermannm.dev/insights/counter"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/metrics"
	"hermannm.dev/insights/playlists"
)

func main() {
	conf, err := config.ReadFromEnv()
	if err != nil {
		log.ErrorCause(err, "failed to read config from env")
		os.Exit(1)
	}

	logLevel := slog.LevelDebug
	if conf.IsProduction {
		logLevel = slog.LevelInfo
	}
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: logLevel})
	slog.SetDefault(slog.New(logHandler))

	ctx := context.Background()

	log.Info("Connecting to ClickHouse...")
	insightsDB, err := db.NewInsightsDB(conf)
	if err != nil {
		log.ErrorCause(err, "failed to initialize database")
		os.Exit(1)
	}

	log.Info("Connecting to Redis...")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.ErrorCause(err, "failed to ping Redis")
		os.Exit(1)
	}
	countCache := counter.NewCountCache(redisClient)

	log.Info("Connecting to Postgres...")
	playlistStore, err := playlists.NewPostgresStore(ctx, conf.Postgres.ConnectionString)
	if err != nil {
		log.ErrorCause(err, "failed to initialize playlist store")
		os.Exit(1)
	}
	defer playlistStore.Close()

	if conf.Counter.Enabled {
		task := counter.NewTask(
			playlistStore,
			countCache,
			insightsDB,
			metrics.NewPrometheusSink(),
			conf.Counter.Cooldown,
		)
		scheduler := counter.NewScheduler(task, playlistStore, counter.SchedulerOptions{
			Interval:     conf.Counter.Interval,
			MaxTeamID:    conf.Counter.MaxTeamID,
			RecountAfter: conf.Counter.RecountAfter,
			BatchSize:    conf.Counter.BatchSize,
		})
		go scheduler.Start(ctx)
	}

	http.DefaultServeMux.Handle("/metrics", promhttp.Handler())
	insightsAPI := api.NewInsightsAPI(insightsDB, countCache, http.DefaultServeMux, conf.API)

	log.Infof("Listening on port %s...", conf.API.Port)
	if err := insightsAPI.ListenAndServe(); err != nil {
		log.ErrorCause(err, "server stopped")
		os.Exit(1)
	}
}
