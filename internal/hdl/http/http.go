package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/gomarket-app/backend/api/rest/v1"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/ctrl"
	mid "github.com/gomarket-app/backend/internal/hdl/http/middleware"
	"github.com/gomarket-app/backend/internal/hdl/http/utils"
	"github.com/gomarket-app/backend/internal/throttle"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// ThrottleGates holds the per-endpoint-class gates applied in front of
// the sensitive auth routes.
type ThrottleGates struct {
	Login    *throttle.Gate
	Register *throttle.Gate
	Refresh  *throttle.Gate
}

type Handler struct {
	Router *chi.Mux
	au     jwt.Port
	srv    *http.Server
	ctrl   ctrl.AppCtrl
	gates  ThrottleGates
}

func New(au jwt.Port, ctrl ctrl.AppCtrl, gates ThrottleGates) *Handler {
	return &Handler{
		Router: chi.NewRouter(),
		au:     au,
		ctrl:   ctrl,
		gates:  gates,
	}
}

func (h *Handler) Start(port int) {
	h.Router.Use(
		mid.Logger(zap.L()),
		middleware.StripSlashes,
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		mid.Prometheus,
		mid.OT,
	)

	h.RegisterAuthRoutes()
	h.RegisterUserRoutes()
	h.Router.Get("/swagger/*", httpSwagger.WrapHandler)
	h.Router.Get(
		"/health", func(w http.ResponseWriter, r *http.Request) {
			utils.SuccessResponse(w, http.StatusOK, "OK")
		},
	)

	h.srv = &http.Server{
		Handler:      h.Router,
		Addr:         fmt.Sprintf(":%v", port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info(
		"Starting HTTP server",
		zap.String("addr", h.srv.Addr),
	)

	err := h.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		zap.L().Error("Server error", zap.Error(err))
	}
}

func (h *Handler) Close(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
