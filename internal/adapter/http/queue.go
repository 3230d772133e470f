package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gojiplus/get-weather-data/internal/adapter/memory"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/hashicorp/go-multierror"
)

// Queue routes served by QueueServer.
const (
	ClaimPath  = "/v1/jobs/claim"
	ResultPath = "/v1/results"
)

const maxResultBody = 256 << 20

// QueueServer is the coordinator-owned HTTP queue. Workers claim jobs and
// submit results over authenticated POST requests; the coordinator publishes
// and drains in-process.
type QueueServer struct {
	server  *Server
	queue   *memory.Queue
	addr    string
	secret  string
	logger  *slog.Logger
	started atomic.Bool
	bound   atomic.Value // string
}

// NewQueueServer creates a queue listener for addr. Requests must carry
// "Authorization: Bearer <secret>".
func NewQueueServer(addr, secret string, logger *slog.Logger) *QueueServer {
	qs := &QueueServer{
		queue:  memory.NewQueue(),
		addr:   addr,
		secret: secret,
		logger: logger,
	}
	qs.server = NewServer(addr, qs, logger)
	qs.server.Handle("POST "+ClaimPath, qs.authorize(http.HandlerFunc(qs.handleClaim)))
	qs.server.Handle("POST "+ResultPath, qs.authorize(http.HandlerFunc(qs.handleResult)))
	return qs
}

// Start binds the listen address and serves in the background.
func (qs *QueueServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", qs.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", qs.addr, err)
	}
	if err := qs.queue.Start(ctx); err != nil {
		l.Close()
		return err
	}
	qs.bound.Store(l.Addr().String())
	qs.started.Store(true)

	go func() {
		if err := qs.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			qs.logger.Error("queue listener error", "error", err)
		}
	}()
	return nil
}

// Addr is the bound listen address once started.
func (qs *QueueServer) Addr() string {
	if a, ok := qs.bound.Load().(string); ok {
		return a
	}
	return qs.addr
}

func (qs *QueueServer) PublishJob(ctx context.Context, b domain.JobBatch) error {
	return qs.queue.PublishJob(ctx, b)
}

func (qs *QueueServer) TryResult(ctx context.Context) (domain.ResultBatch, bool, error) {
	return qs.queue.TryResult(ctx)
}

// Shutdown stops accepting requests and discards anything still queued.
func (qs *QueueServer) Shutdown(ctx context.Context) error {
	qs.started.Store(false)
	var result *multierror.Error
	if err := qs.server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop queue listener: %w", err))
	}
	if err := qs.queue.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// CheckReadiness reports whether the queue is accepting work.
func (qs *QueueServer) CheckReadiness(_ context.Context) error {
	if !qs.started.Load() {
		return errors.New("queue listener not started")
	}
	return nil
}

// ServeHTTP exposes the handler for tests.
func (qs *QueueServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	qs.server.ServeHTTP(w, r)
}

func (qs *QueueServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(qs.secret)) != 1 {
			sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (qs *QueueServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	b, ok, err := qs.queue.TryClaim(r.Context())
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, b)
}

func (qs *QueueServer) handleResult(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResultBody))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	res, err := domain.DecodeResultBatch(data)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := qs.queue.PushResult(r.Context(), res); err != nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
