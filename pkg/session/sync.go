// Package session mirrors the known wallet address to the server-side
// session cookie. The mirror is only a rendering hint; it is never read back.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/httpclient"
	"github.com/donnyesq/gamble/types"
	"github.com/rs/zerolog"
)

const (
	// SetPath receives {"address": "..."} and sets the address cookie.
	SetPath = "/api/set-metamask"
	// RemovePath clears the address cookie.
	RemovePath = "/api/remove-metamask"
)

// Config configures a Sync.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Sync fires best-effort calls at the session endpoint.
type Sync struct {
	client  *httpclient.Client
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Sync. Calls are dispatched on their own goroutines.
func New(cfg Config) *Sync {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger.With().Str("component", "session_sync").Logger()
	return &Sync{
		client: httpclient.New(httpclient.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   timeout,
			Logger:    logger,
			Transport: cfg.Transport,
		}),
		timeout: timeout,
		logger:  logger,
	}
}

// Upsert mirrors address. It returns immediately.
func (s *Sync) Upsert(address string) {
	s.dispatch("upsert", func(ctx context.Context) error {
		resp, err := s.client.Post(ctx, SetPath, map[string]string{"address": address})
		if err != nil {
			return err
		}
		if err := resp.Expect(http.StatusCreated); err != nil {
			return err
		}
		var msg types.MessageResponse
		if err := resp.Unmarshal(&msg); err == nil {
			s.logger.Debug().Str("message", msg.Message).Msg("Session address set")
		}
		return nil
	})
}

// Remove clears the mirrored address. It returns immediately.
func (s *Sync) Remove() {
	s.dispatch("remove", func(ctx context.Context) error {
		resp, err := s.client.Get(ctx, RemovePath)
		if err != nil {
			return err
		}
		return resp.Expect()
	})
}

// Close stops accepting calls and blocks until every dispatched call has
// settled. Upsert and Remove after Close are dropped.
func (s *Sync) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sync) dispatch(op string, call func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug().Str("op", op).Msg("Session sync closed, call dropped")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Debug().Str("op", op).Interface("panic", r).Msg("Session sync panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := call(ctx); err != nil {
			s.logger.Debug().
				Err(errors.SideChannel(err, "session sync failed")).
				Str("op", op).
				Msg("Session sync failed")
		}
	}()
}
