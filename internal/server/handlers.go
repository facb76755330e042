package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
	"dexAdapter/internal/serializer"
)

// requestError is a client error carrying the message returned to the caller.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &requestError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, reqErr.status, map[string]string{"error": reqErr.message})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// targets returns the networks a request applies to: the named one, or
// every configured network in order when the parameter is absent.
func (s *Server) targets(r *http.Request) ([]string, string, error) {
	configured := s.engine.Networks()
	network := strings.TrimSpace(r.URL.Query().Get("network"))
	if network == "" {
		if len(configured) == 0 {
			return nil, "", badRequest("no networks configured")
		}
		return configured, "", nil
	}
	if !slices.Contains(configured, network) {
		return nil, "", badRequest("Unsupported network: %s", network)
	}
	return []string{network}, network, nil
}

func parseAddress(r *http.Request) (common.Address, error) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		return common.Address{}, badRequest("id is required")
	}
	if !strings.HasPrefix(id, "0x") || !common.IsHexAddress(id) {
		return common.Address{}, badRequest("Invalid address format")
	}
	return common.HexToAddress(id), nil
}

func parseBlock(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, badRequest("%s is required", name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return v, nil
}

// cached serves key from the response cache, building and storing the body on
// a miss. Cache failures degrade to building the response.
func (s *Server) cached(ctx context.Context, resource, key string, ttl time.Duration, build func() (any, error)) ([]byte, error) {
	if s.cache != nil {
		body, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.ResponseCache.WithLabelValues(resource, "error").Inc()
			s.logger.Warn("response cache get failed", zap.String("key", key), zap.Error(err))
		case ok:
			metrics.ResponseCache.WithLabelValues(resource, "hit").Inc()
			return body, nil
		default:
			metrics.ResponseCache.WithLabelValues(resource, "miss").Inc()
		}
	}

	v, err := build()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, ttl); err != nil {
			s.logger.Warn("response cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return body, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      s.cfg.ServiceName,
		"version":   s.cfg.Version,
		"networks":  s.engine.Networks(),
		"status":    "running",
		"endpoints": []string{"/latest-block", "/asset", "/pair", "/events", "/health", "/metrics"},
	})
}

type networkHealth struct {
	Connected   bool    `json:"connected"`
	LatestBlock *uint64 `json:"latest_block,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	networks := s.engine.Networks()
	results := make([]networkHealth, len(networks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(networks), 1))
	for i, network := range networks {
		g.Go(func() error {
			block, err := s.engine.LatestBlock(gctx, network)
			if err != nil {
				s.logger.Warn("health check failed", zap.String("network", network), zap.Error(err))
				results[i] = networkHealth{Error: "unreachable"}
				return nil
			}
			n := block.Number
			results[i] = networkHealth{Connected: true, LatestBlock: &n}
			return nil
		})
	}
	_ = g.Wait()

	report := make(map[string]networkHealth, len(networks))
	healthy := 0
	for i, network := range networks {
		report[network] = results[i]
		if results[i].Connected {
			healthy++
		}
	}

	status, code := "healthy", http.StatusOK
	switch {
	case healthy == 0:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case healthy < len(networks):
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": status, "networks": report})
}

func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	networks, network, err := s.targets(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	body, err := s.cached(ctx, "block", "block:"+cacheScope(network), s.cfg.TTLBlocks, func() (any, error) {
		block, err := s.latestBlock(ctx, networks)
		if err != nil {
			return nil, err
		}
		return map[string]serializer.Block{"block": serializer.ToBlock(block)}, nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBody(w, body)
}

// latestBlock returns the highest head across networks. Networks that fail
// are logged and ignored unless every one of them fails.
func (s *Server) latestBlock(ctx context.Context, networks []string) (model.Block, error) {
	if len(networks) == 1 {
		return s.engine.LatestBlock(ctx, networks[0])
	}

	blocks := make([]*model.Block, len(networks))
	errs := make([]error, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(networks))
	for i, network := range networks {
		g.Go(func() error {
			block, err := s.engine.LatestBlock(gctx, network)
			if err != nil {
				s.logger.Warn("latest block failed", zap.String("network", network), zap.Error(err))
				errs[i] = err
				return nil
			}
			blocks[i] = &block
			return nil
		})
	}
	_ = g.Wait()

	var best *model.Block
	for _, b := range blocks {
		if b != nil && (best == nil || b.Number > best.Number) {
			best = b
		}
	}
	if best == nil {
		return model.Block{}, fmt.Errorf("latest block on every network: %w", errors.Join(errs...))
	}
	return *best, nil
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	networks, network, err := s.targets(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	key := "asset:" + cacheScope(network) + ":" + strings.ToLower(addr.Hex())
	body, err := s.cached(ctx, "asset", key, s.cfg.TTLAssets, func() (any, error) {
		token, err := firstHit(networks, func(n string) (model.Token, error) {
			return s.resolver.ResolveToken(ctx, n, addr)
		})
		if errors.Is(err, model.ErrNotFound) {
			return nil, notFound("Asset not found: %s", addr.Hex())
		}
		if err != nil {
			return nil, err
		}
		return map[string]serializer.Asset{"asset": serializer.ToAsset(token)}, nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBody(w, body)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	networks, network, err := s.targets(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	key := "pair:" + cacheScope(network) + ":" + strings.ToLower(addr.Hex())
	body, err := s.cached(ctx, "pair", key, s.cfg.TTLPairs, func() (any, error) {
		pool, err := firstHit(networks, func(n string) (model.Pool, error) {
			return s.resolver.ResolvePoolWithTokens(ctx, n, addr)
		})
		if errors.Is(err, model.ErrNotFound) {
			return nil, notFound("Pair not found: %s", addr.Hex())
		}
		if err != nil {
			return nil, err
		}
		pair, err := s.serializer.ToPair(pool)
		if err != nil {
			return nil, err
		}
		return map[string]serializer.Pair{"pair": pair}, nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBody(w, body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, err := parseBlock(r, "fromBlock")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseBlock(r, "toBlock")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if from > to {
		s.writeError(w, r, badRequest("fromBlock cannot be greater than toBlock"))
		return
	}
	if to-from > s.cfg.MaxBlockRange {
		s.writeError(w, r, badRequest("Block range too large (max %d blocks)", s.cfg.MaxBlockRange))
		return
	}
	networks, _, err := s.targets(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	perNetwork := make([][]serializer.Event, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(networks))
	for i, network := range networks {
		g.Go(func() error {
			set, err := s.engine.GetAllEvents(gctx, network, from, to, s.cfg.PageSize)
			if err != nil {
				return fmt.Errorf("%s events: %w", network, err)
			}
			events, err := serializer.Events(set, func(pool common.Address) (model.Pool, error) {
				return s.resolver.ResolvePoolWithTokens(gctx, network, pool)
			})
			if err != nil {
				return fmt.Errorf("%s serialize: %w", network, err)
			}
			perNetwork[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}

	merged := make([]serializer.Event, 0)
	for _, events := range perNetwork {
		merged = append(merged, events...)
	}
	if len(perNetwork) > 1 {
		model.SortByKey(merged)
	}
	writeJSON(w, http.StatusOK, map[string][]serializer.Event{"events": merged})
}

// firstHit tries networks in order and returns the first successful lookup.
// Misses fall through; the last other error wins over ErrNotFound.
func firstHit[T any](networks []string, lookup func(network string) (T, error)) (T, error) {
	var zero T
	var failure error
	for _, n := range networks {
		v, err := lookup(n)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			failure = err
		}
	}
	if failure != nil {
		return zero, failure
	}
	return zero, model.ErrNotFound
}

func cacheScope(network string) string {
	if network == "" {
		return "*"
	}
	return network
}
