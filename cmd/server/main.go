package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/config"
	"estate-dashboard/internal/grpcweb"
	"estate-dashboard/internal/handler"
	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/policy"
	"estate-dashboard/internal/rpc"
	"estate-dashboard/internal/schedule"
	"estate-dashboard/internal/session"
	"estate-dashboard/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sessions survive restarts only with a database
	var persister session.Persister
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping")
		}
		log.Info().Msg("connected to postgres")

		key, err := auth.DeriveKey(cfg.SessionSecret, "estate-dashboard/sessions")
		if err != nil {
			log.Fatal().Err(err).Msg("session key")
		}
		st := store.New(pool, key)
		if err := st.Migrate(ctx, cfg.Migrations); err != nil {
			log.Warn().Err(err).Msg("migration skipped")
		}
		persister = st
	} else {
		log.Info().Msg("DATABASE_URL not set, sessions are kept in memory")
	}

	sessions := session.New(cfg.SessionTTL, persister, log)
	go sessions.Run(ctx, time.Minute)

	tbl, err := policy.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("policy")
	}
	client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	calendars := schedule.NewCalendars(client, schedule.Options{
		Location:          cfg.Location,
		StrictTransitions: cfg.StrictStatusTransitions,
	})

	h := handler.New(handler.Deps{
		Policy:    tbl,
		Sessions:  sessions,
		Backend:   client,
		Calendars: calendars,
		Limiter:   middleware.NewRateLimiter(ctx, cfg.SignInRPS, cfg.SignInBurst),
		Secret:    cfg.SessionSecret,
		StaticDir: cfg.StaticDir,
		Log:       log,
	})
	h.Watch(ctx)

	// grpc server
	hs := health.NewServer()
	gsrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(middleware.NewRateLimiter(ctx, 20, 40)),
			middleware.Auth(sessions, cfg.SessionSecret),
		),
	)
	healthpb.RegisterHealthServer(gsrv, hs)
	rpc.Register(gsrv, rpc.NewCalendar(tbl, calendars, log))
	go rpc.WatchBackend(ctx, hs, client.Ping, 30*time.Second, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		if err := gsrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc")
		}
	}()

	// grpc-web bridge -> forwards browser calls to grpc on localhost
	bridge, err := grpcweb.New(loopback(cfg.GRPCAddr), middleware.CookieName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bridge")
	}
	defer bridge.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	if len(cfg.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.AllowOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Grpc-Web", "X-User-Agent"},
			ExposeHeaders:    []string{"Grpc-Status", "Grpc-Message"},
		}))
	}
	e.Use(middleware.Session(sessions, cfg.SessionSecret, log))
	h.Register(e)
	e.POST("/"+rpc.ServiceName+"/*", echo.WrapHandler(bridge))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	gsrv.GracefulStop()
}

// loopback turns a listen address like ":50051" into one we can dial.
func loopback(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
