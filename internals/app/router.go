package app

import (
	"context"
	"net/http"
	"time"

	middle "sentinel/internals/middleware"
	"sentinel/internals/modules/alert"
	"sentinel/internals/modules/monitor"
	"sentinel/internals/modules/notification"
	"sentinel/internals/modules/scheduler"
	"sentinel/internals/modules/tenant"
	"sentinel/pkg/metrics"
	"sentinel/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(c *Container) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middle.Logger(c.Logger))
	r.Use(middle.Metrics(metrics.HTTPRecorder{}))
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", c.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		// token issuance is public, the rest of /tenants guards itself
		v1.Mount("/tenants", tenant.Routes(c.tenantHandler, c.authMW))

		v1.Group(func(authed chi.Router) {
			authed.Use(c.authMW.Handle)

			authed.Mount("/monitors", monitor.Routes(c.monitorHandler, c.resultHandler.MonitorRoutes))
			authed.Mount("/alerts", alert.Routes(c.alertHandler))
			authed.Mount("/channels", notification.Routes(c.channelHandler))
			authed.Get("/engine/stats", c.engineStats)
		})
	})

	return r
}

type healthResponse struct {
	Database bool `json:"database"`
	Redis    bool `json:"redis"`
}

type engineStatsResponse struct {
	Scheduler  scheduler.Stats         `json:"scheduler"`
	RetryQueue notification.QueueStats `json:"retry_queue"`
}

func (c *Container) health(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Database: c.DB.Ping(ctx) == nil, Redis: true}
	if c.RedisClient != nil {
		resp.Redis = c.RedisClient.Healthy(ctx)
	}

	status := http.StatusOK
	if !resp.Database || !resp.Redis {
		status = http.StatusServiceUnavailable
	}
	utils.WriteJSON(w, status, reqID, "health", resp)
}

func (c *Container) engineStats(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	qs, err := c.RetryQueue.Stats(r.Context(), time.Now())
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "engine stats", engineStatsResponse{
		Scheduler:  c.Scheduler.GetStats(),
		RetryQueue: qs,
	})
}
