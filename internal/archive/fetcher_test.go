package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "ftp://ftp.example.gov/pub/data/ghcn/daily/all/USC00166664.dly"

type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	errs  []error // returned in order; nil entries and exhaustion mean success
	body  string
}

func (d *fakeDownloader) Download(_ context.Context, _ string, w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return d.errs[i]
	}
	_, err := io.WriteString(w, d.body)
	return err
}

func (d *fakeDownloader) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(d Downloader, clock clockwork.Clock, backoff Backoff) *Fetcher {
	return NewFetcher(Options{
		Downloader: d,
		Clock:      clock,
		Backoff:    backoff,
		MaxRetries: DefaultMaxRetries,
		Logger:     testLogger(),
		Metrics:    observability.NewMetricsForTesting(),
	})
}

func repeatErr(err error, n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}

func TestEnsureLocal_ExistingFileSkipsNetwork(t *testing.T) {
	local := filepath.Join(t.TempDir(), "USC00166664.dly")
	require.NoError(t, os.WriteFile(local, []byte("cached"), 0o600))

	d := &fakeDownloader{}
	f := newTestFetcher(d, clockwork.NewFakeClock(), nil)

	assert.Equal(t, Present, f.EnsureLocal(context.Background(), testURL, local))
	assert.Equal(t, 0, d.Calls())
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ArchiveCache.WithLabelValues("hit")), 0)
}

func TestEnsureLocal_DownloadsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "USC00166664201001TMAX  150  X")
	}))
	defer srv.Close()

	dir := t.TempDir()
	local := filepath.Join(dir, "ghcn-daily", "all", "USC00166664.dly")
	f := newTestFetcher(NewDownloader(5*time.Second), clockwork.NewFakeClock(), nil)

	require.Equal(t, Present, f.EnsureLocal(context.Background(), srv.URL+"/USC00166664.dly", local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "USC00166664201001TMAX  150  X", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, "ghcn-daily", "all", "*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEnsureLocal_NotFoundIsMemoised(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(NewDownloader(5*time.Second), clockwork.NewFakeClock(), nil)
	rawURL := srv.URL + "/gsod/2010/722860-23119-2010.op.gz"
	local := filepath.Join(t.TempDir(), "722860-23119-2010.op.gz")

	assert.Equal(t, PermanentlyAbsent, f.EnsureLocal(context.Background(), rawURL, local))
	assert.Equal(t, PermanentlyAbsent, f.EnsureLocal(context.Background(), rawURL, local))

	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, f.NotFound().Contains(rawURL))
	assert.NoFileExists(t, local)
}

func TestEnsureLocal_FTPUnavailableIsMemoised(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed reply", &textproto.Error{Code: 550, Msg: "Failed to open file."}},
		{"wrapped reply", errors.Join(errors.New("ftp retr"), &textproto.Error{Code: 550, Msg: "No such file"})},
		{"message scan", errors.New("ftp error: 550 No such file or directory")},
		{"http gone", &StatusError{Code: 410, Status: "Gone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDownloader{errs: []error{tt.err}}
			f := newTestFetcher(d, clockwork.NewFakeClock(), nil)
			local := filepath.Join(t.TempDir(), "USC00166664.dly")

			assert.Equal(t, PermanentlyAbsent, f.EnsureLocal(context.Background(), testURL, local))
			assert.Equal(t, 1, d.Calls())
			assert.True(t, f.NotFound().Contains(testURL))

			assert.Equal(t, PermanentlyAbsent, f.EnsureLocal(context.Background(), testURL, local))
			assert.Equal(t, 1, d.Calls(), "memoised url must not be requested again")
		})
	}
}

func TestEnsureLocal_RetriesWithLinearBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	d := &fakeDownloader{errs: repeatErr(errors.New("connection reset by peer"), 10)}

	var mu sync.Mutex
	var delays []time.Duration
	linear := LinearBackoff(10 * time.Second)
	recording := func(attempt int) time.Duration {
		delay := linear(attempt)
		mu.Lock()
		delays = append(delays, delay)
		mu.Unlock()
		return delay
	}

	f := newTestFetcher(d, clock, recording)
	local := filepath.Join(t.TempDir(), "USC00166664.dly")

	done := make(chan Outcome, 1)
	go func() { done <- f.EnsureLocal(ctx, testURL, local) }()

	for i := 1; i <= DefaultMaxRetries; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Duration(i) * 10 * time.Second)
	}

	select {
	case outcome := <-done:
		assert.Equal(t, PermanentlyAbsent, outcome)
	case <-ctx.Done():
		t.Fatal("EnsureLocal did not return")
	}

	assert.Equal(t, DefaultMaxRetries+1, d.Calls())
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 30 * time.Second, 40 * time.Second, 50 * time.Second,
	}, delays)
	assert.False(t, f.NotFound().Contains(testURL), "exhausted retries are not memoised")
	assert.InDelta(t, 5, testutil.ToFloat64(f.metrics.ArchiveRetries), 0)
}

func TestEnsureLocal_TransientThenSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	d := &fakeDownloader{
		errs: []error{&textproto.Error{Code: 421, Msg: "Too many connections"}, errors.New("i/o timeout")},
		body: "archive",
	}
	f := newTestFetcher(d, clock, LinearBackoff(10*time.Second))
	local := filepath.Join(t.TempDir(), "USC00166664.dly")

	done := make(chan Outcome, 1)
	go func() { done <- f.EnsureLocal(ctx, testURL, local) }()

	for i := 1; i <= 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Duration(i) * 10 * time.Second)
	}

	assert.Equal(t, Present, <-done)
	assert.Equal(t, 3, d.Calls())
	assert.FileExists(t, local)
}

func TestEnsureLocal_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	d := &fakeDownloader{errs: repeatErr(errors.New("connection refused"), 10)}
	f := newTestFetcher(d, clock, LinearBackoff(10*time.Second))

	done := make(chan Outcome, 1)
	go func() { done <- f.EnsureLocal(ctx, testURL, filepath.Join(t.TempDir(), "x.dly")) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	assert.Equal(t, PermanentlyAbsent, <-done)
	assert.Equal(t, 1, d.Calls())
}

func TestEnsureLocal_UnsupportedScheme(t *testing.T) {
	f := newTestFetcher(NewDownloader(time.Second), clockwork.NewFakeClock(), nil)
	rawURL := "gopher://example.org/USC00166664.dly"

	assert.Equal(t, PermanentlyAbsent, f.EnsureLocal(context.Background(), rawURL, filepath.Join(t.TempDir(), "x.dly")))
	assert.True(t, f.NotFound().Contains(rawURL))
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(10 * time.Second)
	assert.Equal(t, time.Duration(0), b(0))
	assert.Equal(t, 10*time.Second, b(1))
	assert.Equal(t, 50*time.Second, b(5))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		ok   bool
	}{
		{"status error", &StatusError{Code: 503}, 503, true},
		{"textproto", &textproto.Error{Code: 550}, 550, true},
		{"leading code", errors.New("550 Failed to open file."), 550, true},
		{"embedded code", errors.New("ftp retr: 421 Service not available"), 421, true},
		{"port is not a code", errors.New("dial tcp 10.0.0.1:21: connect: refused"), 0, false},
		{"no code", errors.New("connection reset"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := statusCode(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}
