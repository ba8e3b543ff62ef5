package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	authapi "github.com/Vasu1712/campus-marketplace/internal/api/auth"
	conversationsapi "github.com/Vasu1712/campus-marketplace/internal/api/conversations"
	listingsapi "github.com/Vasu1712/campus-marketplace/internal/api/listings"
	reportapi "github.com/Vasu1712/campus-marketplace/internal/api/report"
	"github.com/Vasu1712/campus-marketplace/internal/config"
	"github.com/Vasu1712/campus-marketplace/internal/conversations"
	"github.com/Vasu1712/campus-marketplace/internal/httputil"
	"github.com/Vasu1712/campus-marketplace/internal/listings"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/metrics"
	"github.com/Vasu1712/campus-marketplace/internal/middleware"
	"github.com/Vasu1712/campus-marketplace/internal/realtime"
	"github.com/Vasu1712/campus-marketplace/internal/report"
	"github.com/Vasu1712/campus-marketplace/internal/session"
	"github.com/Vasu1712/campus-marketplace/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	m := metrics.New()

	sb, err := supabase.New(supabase.Config{
		URL:     cfg.Supabase.URL,
		AnonKey: cfg.Supabase.AnonKey,
		Observe: m.ObserveBackend,
	})
	if err != nil {
		return err
	}

	stores, err := openBackend(ctx, cfg, sb, log)
	if err != nil {
		return err
	}
	defer stores.close()

	notifier := session.NewNotifier(64, log)
	notifier.Start()
	defer notifier.Stop()
	lastLogin := session.TrackLastLogin(notifier, stores.profiles, log)
	defer lastLogin.Unsubscribe()

	sessions := session.NewService(sb.Auth(), stores.profiles,
		session.WithJWTSecret(cfg.Supabase.JWTSecret),
		session.WithAvatars(stores.objects, cfg.Server.AvatarsBucket),
		session.WithNotifier(notifier),
		session.WithCallbackURL(cfg.CallbackURL()),
		session.WithLogger(log),
	)

	hub := realtime.NewHub()
	go hub.Run(ctx)

	var publisher conversations.Publisher = realtime.NewLocalBroker(hub)
	if cfg.ValkeyAddr != "" {
		vb, err := realtime.NewValkeyBroker(cfg.ValkeyAddr, hub, log)
		if err != nil {
			return err
		}
		defer vb.Close()
		go func() {
			if err := vb.Run(ctx); err != nil {
				log.WithError(err).Error("valkey subscription ended")
			}
		}()
		publisher = vb
		log.WithField("addr", cfg.ValkeyAddr).Info("realtime messages relayed through valkey")
	}

	listingSvc := listings.NewService(stores.listings,
		listings.WithImages(stores.objects, cfg.Server.ListingsBucket),
		listings.WithLogger(log),
	)
	conversationSvc := conversations.NewService(stores.conversations,
		conversations.WithPublisher(publisher),
		conversations.WithLogger(log),
	)
	reporter := report.NewNotifier(cfg.Mail, report.WithLogger(log))

	limiter := middleware.NewRateLimiter(cfg.Server.ReportRatePerMinute, cfg.Server.ReportBurst, log)
	if err := limiter.TrustProxies(cfg.Server.TrustedProxies); err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Logging(log), middleware.Metrics(m))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": cfg.StorageBackend})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	requireAuth := middleware.RequireAuth(sessions)
	authapi.RegisterRoutes(router, &authapi.Handler{Session: sessions, Log: log}, requireAuth)
	listingsapi.RegisterRoutes(router, &listingsapi.Handler{
		Listings:      listingSvc,
		Conversations: conversationSvc,
		Log:           log,
	}, requireAuth)
	conversationsapi.RegisterRoutes(router, &conversationsapi.Handler{
		Service:  conversationSvc,
		Hub:      hub,
		Upgrader: realtime.NewUpgrader(cfg.Server.AllowedOrigins),
		Metrics:  m,
		Log:      log,
	}, requireAuth)
	reportapi.RegisterRoutes(router, &reportapi.Handler{Reporter: reporter, Metrics: m, Log: log}, limiter.Handler)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.CORS(cfg.Server.AllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"backend": cfg.StorageBackend,
		}).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
