package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quantbox/chainfeed/internal/api"
	"github.com/quantbox/chainfeed/internal/chain"
	"github.com/quantbox/chainfeed/internal/config"
	"github.com/quantbox/chainfeed/internal/stream"
)

// Underlyings the service will build chains for.
var supportedUnderlyings = map[string]bool{
	"NIFTY":     true,
	"BANKNIFTY": true,
	"SENSEX":    true,
}

type server struct {
	cfg         *config.Config
	registry    *chain.Registry
	apiClient   *api.Client
	conn        *stream.Conn
	expiryCache *chain.TTLCache[[]string]
	logger      *slog.Logger
}

func newServer(cfg *config.Config, registry *chain.Registry, apiClient *api.Client, conn *stream.Conn, logger *slog.Logger) *server {
	return &server{
		cfg:         cfg,
		registry:    registry,
		apiClient:   apiClient,
		conn:        conn,
		expiryCache: chain.NewTTLCache[[]string](cfg.Chain.CacheTTL, cfg.Chain.CacheSize),
		logger:      logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/option-chain", s.handleOptionChain)
	mux.HandleFunc("GET /api/expiry/{underlying}", s.handleExpiry)
	mux.HandleFunc("GET /api/stream/{underlying}", s.handleStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// parseUnderlying normalizes and validates an underlying symbol.
func parseUnderlying(raw string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(raw))
	if !supportedUnderlyings[u] {
		return "", fmt.Errorf("unsupported underlying %q", raw)
	}
	return u, nil
}

// expiries returns the expiry list for an underlying, served from the TTL
// cache when fresh.
func (s *server) expiries(ctx context.Context, underlying string) ([]string, error) {
	if cached, ok := s.expiryCache.Get(underlying); ok {
		return cached, nil
	}

	list, err := s.apiClient.Expiry(ctx, underlying, chain.OptionExchange(underlying), "options")
	if err != nil {
		return nil, err
	}
	s.expiryCache.Set(underlying, list)
	return list, nil
}

// resolveExpiry picks the expiry for a request: the explicit query value when
// present, otherwise the nearest one from the upstream expiry list.
func (s *server) resolveExpiry(ctx context.Context, underlying, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	list, err := s.expiries(ctx, underlying)
	if err != nil {
		return "", fmt.Errorf("resolve expiry: %w", err)
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no expiries available for %s", underlying)
	}
	return list[0], nil
}

// handleOptionChain serves GET /api/option-chain?underlying=NIFTY&expiry=28-AUG-25.
// The expiry is optional; when omitted the nearest upstream expiry is used.
func (s *server) handleOptionChain(w http.ResponseWriter, r *http.Request) {
	underlying, err := parseUnderlying(r.URL.Query().Get("underlying"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expiry, err := s.resolveExpiry(r.Context(), underlying, r.URL.Query().Get("expiry"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	eng, err := s.registry.GetOrCreate(r.Context(), underlying, expiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, eng.Snapshot())
}

// handleExpiry serves GET /api/expiry/{underlying}.
func (s *server) handleExpiry(w http.ResponseWriter, r *http.Request) {
	underlying, err := parseUnderlying(r.PathValue("underlying"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.expiries(r.Context(), underlying)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"underlying": underlying,
		"expiries":   list,
	})
}

// handleStream serves GET /api/stream/{underlying}?expiry=... as server-sent
// events, pushing a chain snapshot every stream interval until the client
// disconnects.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	underlying, err := parseUnderlying(r.PathValue("underlying"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	expiry, err := s.resolveExpiry(r.Context(), underlying, r.URL.Query().Get("expiry"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	eng, err := s.registry.GetOrCreate(r.Context(), underlying, expiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.cfg.Server.StreamInterval)
	defer ticker.Stop()

	s.logger.Info("stream client connected", "underlying", underlying, "expiry", expiry)
	defer s.logger.Info("stream client disconnected", "underlying", underlying)

	for {
		payload, err := json.Marshal(eng.Snapshot())
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// handleHealth reports process health: stream connection state and the
// number of live chains.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engines := s.registry.Engines()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	state := s.conn.State()
	health.Components["stream"] = map[string]any{
		"state":         string(state),
		"authenticated": s.conn.IsAuthenticated(),
	}
	if state != stream.StateAuthenticated {
		health.Status = "degraded"
	}

	chains := make([]map[string]string, 0, len(engines))
	for _, eng := range engines {
		chains = append(chains, map[string]string{
			"chain":    eng.Underlying() + "_" + eng.Expiry(),
			"instance": eng.InstanceID(),
		})
	}
	health.Components["chains"] = map[string]any{
		"count":  len(engines),
		"active": chains,
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
