package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietline/frontdesk/internal/config"
	agentHandler "github.com/quietline/frontdesk/internal/handler/agent"
	"github.com/quietline/frontdesk/internal/handler/calls"
	"github.com/quietline/frontdesk/internal/handler/knowledge"
	"github.com/quietline/frontdesk/internal/handler/notifications"
	"github.com/quietline/frontdesk/internal/handler/settings"
	"github.com/quietline/frontdesk/internal/handler/status"
	"github.com/quietline/frontdesk/internal/handler/webhook"
	middlewarePkg "github.com/quietline/frontdesk/internal/middleware"
	"github.com/quietline/frontdesk/internal/metrics"
	callService "github.com/quietline/frontdesk/internal/service/call"
	"github.com/quietline/frontdesk/internal/service/notify"
	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/internal/telnyx"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(telnyxCfg config.TelnyxConfig, st *store.Store, hub *notify.Hub, tc *telnyx.Client, callSvc *callService.Service, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	webhookHandler := webhook.New(tc, callSvc, st, hub, m)
	callsHandler := calls.New(st)
	knowledgeHandler := knowledge.New(st)
	settingsHandler := settings.New(st)
	notificationsHandler := notifications.New(hub)
	agentHdl := agentHandler.New(st, st, callSvc)
	statusHandler := status.New(telnyxCfg, tc, callSvc)

	// Webhooks are unauthenticated HTTP endpoints at the root; everything the
	// dashboard consumes lives under /api.
	webhookHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		callsHandler.RegisterRoutes(api)
		knowledgeHandler.RegisterRoutes(api)
		settingsHandler.RegisterRoutes(api)
		notificationsHandler.RegisterRoutes(api)
		agentHdl.RegisterRoutes(api)
		statusHandler.RegisterRoutes(api)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
