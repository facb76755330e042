package upstream

import (
	"net/http"
	"sync"
	"time"
)

// Session owns the process-wide HTTP client used for GraphQL calls. The
// client is created on first use and released by Close; a later call
// creates a fresh one.
type Session struct {
	timeout time.Duration

	mu     sync.Mutex
	client *http.Client
}

func NewSession(timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Session{timeout: timeout}
}

// HTTPClient returns the shared client, creating it if needed.
func (s *Session) HTTPClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 16
		s.client = &http.Client{Timeout: s.timeout, Transport: transport}
	}
	return s.client
}

// Open reports whether a client currently exists.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Close drops idle connections and releases the client. Safe to call more
// than once and on a session that was never used.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	s.client.CloseIdleConnections()
	s.client = nil
}
