package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/deckray/config"
	"github.com/mohammad-safakhou/deckray/internal/deckcache"
	"github.com/mohammad-safakhou/deckray/internal/ingest"
	"github.com/mohammad-safakhou/deckray/internal/metrics"
	"github.com/mohammad-safakhou/deckray/internal/ocr"
	"github.com/mohammad-safakhou/deckray/internal/search"
)

// Run wires the full engine behind the HTTP API and blocks serving it.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	m := metrics.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	var index *search.Index
	if cfg.Search.Enabled {
		if cfg.Search.IndexPath != "" {
			index, err = search.Open(cfg.Search.IndexPath)
		} else {
			index, err = search.NewMemOnly()
		}
		if err != nil {
			return fmt.Errorf("search index: %w", err)
		}
	}

	engLogger := log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	opts := []ingest.Option{ingest.WithMetrics(m)}
	if index != nil {
		opts = append(opts, ingest.WithSearchIndex(index))
	}
	eng := ingest.New(cfg, engLogger, ingest.NewChromeLauncher(engLogger), ocr.NewTesseract(cfg.OCR.Languages), store, opts...)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	ah := &AuthHandler{Secret: []byte(secret), IntakeSecret: cfg.Server.IntakeSecret, TokenTTL: cfg.Server.TokenTTL}
	ah.Register(api.Group("/auth"))

	dh := &DecksHandler{Engine: eng, Store: store, Index: index}
	dh.Register(api, []byte(secret))

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// buildStore selects the fingerprint cache backend from config.
func buildStore(cfg *config.Config) (deckcache.Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return deckcache.NewMemory(), nil
	case "redis":
		r := cfg.Cache.Redis
		client, err := deckcache.Conn(context.Background(), r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed (%s:%s): %w", r.Host, r.Port, err)
		}
		return deckcache.NewRedis(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
