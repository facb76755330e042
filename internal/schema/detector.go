package schema

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
	"dexAdapter/internal/upstream"
)

const (
	introspectionQuery = `query SwapFields { __type(name: "Swap") { fields { name } } }`
	probeQuery         = `query DetectSchema { swaps(first: 1) { id amount0 amount1 reserves0 reserves1 } }`
)

var reserveFields = []string{"reserves0", "reserves1"}

// detectTimeout bounds one detection, introspection and probe together.
const detectTimeout = 30 * time.Second

// Doer sends a single GraphQL request and returns the raw envelope.
type Doer interface {
	Do(ctx context.Context, ep upstream.Endpoint, req upstream.Request) (*upstream.Response, error)
}

type key struct {
	network string
	url     string
}

// Detector finds out whether a subgraph exposes swap reserves. Results are
// cached per (network, endpoint) for the life of the process.
type Detector struct {
	client Doer
	logger *zap.Logger

	mu        sync.RWMutex
	cache     map[key]model.SchemaVersion
	overrides map[key]model.SchemaVersion

	group singleflight.Group
}

func NewDetector(client Doer, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		client:    client,
		logger:    logger,
		cache:     make(map[key]model.SchemaVersion),
		overrides: make(map[key]model.SchemaVersion),
	}
}

// SetOverride pins the version for an endpoint. Overrides win over detection
// and survive Reset.
func (d *Detector) SetOverride(ep upstream.Endpoint, version model.SchemaVersion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[key{ep.Network, ep.URL}] = version
	d.logger.Info("schema override", zap.String("network", ep.Network), zap.Stringer("version", version))
}

// Cached returns the known version without touching the network.
func (d *Detector) Cached(ep upstream.Endpoint) (model.SchemaVersion, bool) {
	k := key{ep.Network, ep.URL}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if v, ok := d.overrides[k]; ok {
		return v, true
	}
	v, ok := d.cache[k]
	return v, ok
}

// Reset forgets the detected version of one endpoint.
func (d *Detector) Reset(ep upstream.Endpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, key{ep.Network, ep.URL})
}

// ResetAll forgets every detected version.
func (d *Detector) ResetAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[key]model.SchemaVersion)
}

// DetectSchema returns the schema version of ep. Detection never fails: when
// nothing can be learned the endpoint is treated as V1. Detection runs
// detached from ctx so a caller that goes away neither aborts it for other
// callers nor caches a version; that caller gets V1 for this call only.
func (d *Detector) DetectSchema(ctx context.Context, ep upstream.Endpoint) model.SchemaVersion {
	if v, ok := d.Cached(ep); ok {
		return v
	}

	sfKey := ep.Network + "|" + ep.URL
	ch := d.group.DoChan(sfKey, func() (interface{}, error) {
		if v, ok := d.Cached(ep); ok {
			return v, nil
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detectTimeout)
		defer cancel()

		version, method := d.detect(dctx, ep)
		metrics.SchemaDetections.WithLabelValues(ep.Network, method, version.String()).Inc()
		d.logger.Info("schema detected",
			zap.String("network", ep.Network),
			zap.String("method", method),
			zap.Stringer("version", version),
		)

		d.mu.Lock()
		d.cache[key{ep.Network, ep.URL}] = version
		d.mu.Unlock()
		return version, nil
	})

	select {
	case res := <-ch:
		return res.Val.(model.SchemaVersion)
	case <-ctx.Done():
		d.logger.Debug("schema detection abandoned", zap.String("network", ep.Network), zap.Error(ctx.Err()))
		return model.SchemaV1
	}
}

func (d *Detector) detect(ctx context.Context, ep upstream.Endpoint) (model.SchemaVersion, string) {
	v, err := d.introspect(ctx, ep)
	if err == nil {
		return v, "introspection"
	}
	d.logger.Warn("introspection failed", zap.String("network", ep.Network), zap.Error(err))

	v, err = d.probe(ctx, ep)
	if err != nil {
		d.logger.Warn("schema probe failed, assuming v1", zap.String("network", ep.Network), zap.Error(err))
		return model.SchemaV1, "default"
	}
	return v, "probe"
}

var errNoSwapType = errors.New("swap type not in schema")

func (d *Detector) introspect(ctx context.Context, ep upstream.Endpoint) (model.SchemaVersion, error) {
	resp, err := d.client.Do(ctx, ep, upstream.Request{Query: introspectionQuery})
	if err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		return 0, &upstream.Error{Network: ep.Network, Status: 200, Messages: []string{resp.Errors[0].Message}}
	}

	var data struct {
		Type *struct {
			Fields []struct {
				Name string `json:"name"`
			} `json:"fields"`
		} `json:"__type"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, err
	}
	if data.Type == nil {
		return 0, errNoSwapType
	}

	names := make([]string, 0, len(data.Type.Fields))
	for _, f := range data.Type.Fields {
		names = append(names, f.Name)
	}
	for _, f := range reserveFields {
		if !slices.Contains(names, f) {
			return model.SchemaV1, nil
		}
	}
	return model.SchemaV2, nil
}

// probe runs a query that selects the reserve fields. A field complaint
// means V1; any other outcome of a delivered response means V2.
func (d *Detector) probe(ctx context.Context, ep upstream.Endpoint) (model.SchemaVersion, error) {
	resp, err := d.client.Do(ctx, ep, upstream.Request{Query: probeQuery})
	if err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		ue := &upstream.Error{Network: ep.Network, Status: 200, Messages: msgs}
		if ue.HasFieldError(reserveFields...) {
			return model.SchemaV1, nil
		}
	}
	return model.SchemaV2, nil
}
