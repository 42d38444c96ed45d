package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deckray/internal/deckcache"
	"github.com/mohammad-safakhou/deckray/internal/ingest"
	"github.com/mohammad-safakhou/deckray/internal/search"
	"github.com/mohammad-safakhou/deckray/models"
)

// DecksHandler serves deck ingestion and retrieval.
type DecksHandler struct {
	Engine *ingest.Engine
	Store  deckcache.Store
	Index  *search.Index
}

func (h *DecksHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("/ingest", h.ingest)
	g.GET("/decks/:fingerprint", h.get)
	g.GET("/search", h.search)
}

// IngestPayload is the wire form of an ingestion request. The timeout is
// given in seconds; zero means the server default.
type IngestPayload struct {
	Address        string                 `json:"address"`
	IdentityEmail  string                 `json:"identity_email"`
	Passphrase     string                 `json:"passphrase"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
	Stealth        *models.StealthProfile `json:"stealth_profile"`
}

func (h *DecksHandler) ingest(c echo.Context) error {
	var payload IngestPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(payload.Address) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address is required")
	}
	req := models.IngestRequest{
		Address:       payload.Address,
		IdentityEmail: payload.IdentityEmail,
		Passphrase:    payload.Passphrase,
		Timeout:       time.Duration(payload.TimeoutSeconds) * time.Second,
		Stealth:       payload.Stealth,
	}
	// Session-level failures ride inside the result; a Go error here means
	// the engine itself is unhealthy.
	res, err := h.Engine.Ingest(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *DecksHandler) get(c echo.Context) error {
	fp := c.Param("fingerprint")
	entry, ok, err := h.Store.Get(c.Request().Context(), fp)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no cached result for fingerprint")
	}
	return c.JSON(http.StatusOK, entry.Result)
}

func (h *DecksHandler) search(c echo.Context) error {
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not enabled")
	}
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	hits, err := h.Index.Search(q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}
