package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexAdapter/internal/scan"
)

func newTestClient(retries int) *Client {
	return NewClient(NewSession(5*time.Second), ClientConfig{
		Retry: scan.RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond},
	}, nil)
}

func TestQueryDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, float64(7), req.Variables["first"])
		_, _ = w.Write([]byte(`{"data":{"value":"ok"}}`))
	}))
	defer srv.Close()

	var out struct {
		Value string `json:"value"`
	}
	err := newTestClient(0).Query(context.Background(), Endpoint{Network: "polygon", URL: srv.URL},
		Request{Query: "{ value }", Variables: map[string]any{"first": 7}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestQueryErrorsListIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Type Swap has no field reserves0"}]}`))
	}))
	defer srv.Close()

	err := newTestClient(3).Query(context.Background(), Endpoint{Network: "base", URL: srv.URL}, Request{Query: "{ x }"}, &struct{}{})
	require.Error(t, err)

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"Type Swap has no field reserves0"}, ue.Messages)
	assert.True(t, ue.HasFieldError("reserves0"))
	assert.False(t, ue.Transient())
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	err := newTestClient(2).Query(context.Background(), Endpoint{Network: "base", URL: srv.URL}, Request{Query: "{ x }"}, &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(0).Do(context.Background(), Endpoint{Network: "base", URL: srv.URL}, Request{Query: "{ x }"})
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusNotFound, ue.Status)
	assert.False(t, ue.Transient())
	assert.Contains(t, ue.Error(), "404")
}

func TestDoReturnsErrorsListWithoutFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(0).Do(context.Background(), Endpoint{Network: "base", URL: srv.URL}, Request{Query: "{ x }"})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "boom", resp.Errors[0].Message)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := NewSession(time.Second)
	s.Close()
	assert.False(t, s.Open())

	first := s.HTTPClient()
	assert.Same(t, first, s.HTTPClient())
	assert.True(t, s.Open())

	s.Close()
	s.Close()
	assert.False(t, s.Open())
	assert.NotSame(t, first, s.HTTPClient())
}

func TestLimiterNilIsUnlimited(t *testing.T) {
	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
	assert.Nil(t, NewLimiter(0, 1, "base"))
}

func TestLimiterHonoursContext(t *testing.T) {
	l := NewLimiter(0.001, 1, "base")
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}
