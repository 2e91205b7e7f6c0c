package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]string
}

type sessionServer struct {
	mu    sync.Mutex
	calls []recorded
}

func (s *sessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	s.mu.Lock()
	s.calls = append(s.calls, rec)
	s.mu.Unlock()

	if r.URL.Path == SetPath {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *sessionServer) snapshot() []recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recorded(nil), s.calls...)
}

func TestUpsertPostsAddress(t *testing.T) {
	srv := &sessionServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})
	s.Upsert("0xabc")
	s.Close()

	calls := srv.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, SetPath, calls[0].path)
	assert.Equal(t, "0xabc", calls[0].body["address"])
}

func TestRemoveHitsRemoveEndpoint(t *testing.T) {
	srv := &sessionServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})
	s.Remove()
	s.Close()

	calls := srv.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].method)
	assert.Equal(t, RemovePath, calls[0].path)
}

func TestFailuresAreSwallowed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ts.Close()

	s := New(Config{BaseURL: ts.URL, Timeout: 200 * time.Millisecond, Logger: zerolog.Nop()})

	done := make(chan struct{})
	go func() {
		s.Upsert("0xabc")
		s.Remove()
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session calls did not settle")
	}
}

func TestUpsertDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()
	defer close(release)

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})

	start := time.Now()
	s.Upsert("0xabc")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoveErrorStatusIsSwallowed(t *testing.T) {
	var calls int
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})
	s.Remove()
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCallsAfterCloseAreDropped(t *testing.T) {
	srv := &sessionServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})
	s.Close()
	s.Upsert("0xabc")
	s.Remove()
	s.Close()

	assert.Empty(t, srv.snapshot())
}

func TestCloseWhileDispatching(t *testing.T) {
	srv := &sessionServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s := New(Config{BaseURL: ts.URL, Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Upsert("0xabc")
			}
		}()
	}
	s.Close()
	wg.Wait()

	// Every call accepted before Close has settled; later ones were dropped.
	settled := len(srv.snapshot())
	s.Close()
	assert.LessOrEqual(t, settled, 80)
	assert.Equal(t, settled, len(srv.snapshot()))
}
