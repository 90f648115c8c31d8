package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"undercity/internal/config"
	"undercity/internal/sim"
	"undercity/internal/store"
)

func newRouter(world *sim.World, runner *sim.Runner, st *store.Store, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())

		r.Get("/public/events", publicEventsHandler(world))
		r.Get("/public/events/stream", publicEventsStreamHandler(world))
		r.Get("/public/leaderboard", publicLeaderboardHandler(world))
		r.Get("/public/zones", publicZonesHandler(world))
		r.Get("/public/market", publicMarketHandler(world))
		r.Get("/public/world", publicWorldHandler(world, runner))

		r.Post("/agents/register", registerAgentHandler(world))

		r.Group(func(r chi.Router) {
			r.Use(agentAuthMiddleware(world))
			r.Get("/agent/state", agentStateHandler(world))
			r.Post("/agent/act", agentActHandler(world))
			r.Get("/agent/journal", agentJournalHandler(world))
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/admin/agents/{agent_id}/ban", adminBanHandler(world))
			r.Post("/admin/agents/{agent_id}/unban", adminUnbanHandler(world))
			r.Post("/admin/gangs/{gang_id}/disband", adminDisbandGangHandler(world))
			r.Post("/admin/gangs/{gang_id}/reinstate", adminReinstateGangHandler(world))
			r.Post("/admin/world/pause", adminPauseHandler(runner))
			r.Post("/admin/world/resume", adminResumeHandler(runner))
			r.Get("/admin/history/events", adminEventHistoryHandler(st))
			r.Get("/admin/history/ledger", adminLedgerHistoryHandler(st))
			r.Get("/admin/history/actions", adminActionHistoryHandler(st))
		})
	})

	return r
}

func logRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
