package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/auth"
	"tradesim/src/engine"
	"tradesim/src/handler"
	"tradesim/src/onboarding"
	"tradesim/src/repository"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	DB         *gorm.DB
	Engine     *engine.Engine
	Onboarding *onboarding.Service
}

func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	r.Post("/register", handler.RegisterHandler(deps.Onboarding))

	// Authenticated routes
	users := repository.NewUserRepository().WithDB(deps.DB)
	strategies := repository.NewStrategyRepository().WithDB(deps.DB)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(users))

		r.Post("/orders", handler.PlaceOrderHandler(deps.Engine))
		r.Get("/orders", handler.ListOrdersHandler(deps.Engine))
		r.Delete("/orders/{orderID}", handler.CancelOrderHandler(deps.Engine))

		r.Get("/positions", handler.ListPositionsHandler(deps.Engine))
		r.Post("/positions/{positionID}/close", handler.ClosePositionHandler(deps.Engine))

		r.Get("/wallet", handler.WalletHandler(deps.Engine))
		r.Get("/performance", handler.PerformanceHandler(deps.Engine))

		r.Post("/strategies", handler.CreateStrategyHandler(strategies, users))
		r.Get("/strategies", handler.ListStrategiesHandler(strategies))
		r.Post("/strategies/{strategyID}/deactivate", handler.DeactivateStrategyHandler(strategies))

		r.Post("/users/password", handler.ChangePasswordHandler(deps.Onboarding))
	})

	return r
}

func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
