package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/metrics"
	"github.com/kingpin-stream/economy-core/internal/app/system"
	"github.com/kingpin-stream/economy-core/pkg/config"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// Service exposes the command API, webhook ingress, and admin surface and
// fits into the system manager lifecycle, mirroring the teacher's single
// *http.Server carrying several mounted routers.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logger.Logger
}

// NewService wires the player command router, the webhook ingress router,
// and the admin router onto one mux, addr per ServerConfig (§6 External
// Interfaces). Order matters: CORS wraps auth, so preflight requests are
// answered before auth runs, and metrics wraps the final composed handler
// so every mounted router is measured.
func NewService(deps Deps, cfg config.Config, validator JWTValidator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	mux := http.NewServeMux()
	mux.Handle("/", requireActiveUser(deps, NewHandler(deps, log), log))
	mux.Handle("/webhook/", http.StripPrefix("/webhook", wrapWithBotSecret(NewWebhookHandler(deps, log), cfg.Auth.WebhookBotSecret)))
	mux.Handle("/admin/", NewAdminHandler(deps, log))

	var handler http.Handler = mux
	handler = wrapWithAuth(handler, validator, log)
	handler = wrapWithCORS(handler)
	handler = metrics.InstrumentHandler(handler)

	addr := cfg.Server.Host
	if addr == "" {
		addr = "0.0.0.0"
	}

	return &Service{
		addr:    formatAddr(addr, cfg.Server.Port),
		handler: handler,
		log:     log,
	}
}

func formatAddr(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

var _ system.Service = (*Service)(nil)

func (s *Service) Name() string { return "httpapi" }

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("httpapi server error")
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// wrapWithCORS allows cross-origin requests from the overlay dashboard and
// short-circuits preflight requests, mirroring the teacher's CORS wrapper.
func wrapWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireActiveUser loads the authenticated player and rejects banned or
// merged (tombstoned) accounts before any command handler runs. The webhook
// path enforces the same two checks itself inside ingress.Service.Dispatch,
// since it must auto-provision rather than 401 on an unknown platform id.
func requireActiveUser(deps Deps, next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := deps.Store.GetUser(r.Context(), userID)
		if err != nil {
			unauthorised(w)
			return
		}
		if user.IsMerged() || user.Banned {
			writeJSON(w, http.StatusForbidden, errorEnvelope{Error: errorDetail{Code: apperrors.Authz, Message: "account is inactive"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
