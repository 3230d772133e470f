// Package archive retrieves station archive files into a local cache,
// retrying transient server failures and remembering permanent ones.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Outcome is the result of EnsureLocal.
type Outcome int

const (
	// PermanentlyAbsent means the archive is not available locally and will
	// not be for this request.
	PermanentlyAbsent Outcome = iota
	// Present means the archive exists at the requested local path.
	Present
)

func (o Outcome) String() string {
	if o == Present {
		return "present"
	}
	return "absent"
}

// DefaultMaxRetries is the number of retries after the first failed attempt.
const DefaultMaxRetries = 5

// Server reply codes that mean the file will never exist.
var permanentCodes = map[int]bool{
	550: true, // FTP: file unavailable
	404: true,
	410: true,
}

var replyCode = regexp.MustCompile(`(?:^|\s)(\d{3})(?:\s|$)`)

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Downloader Downloader
	Clock      clockwork.Clock
	Backoff    Backoff
	MaxRetries int
	NotFound   *NotFoundCache
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Fetcher ensures archive files are present in the local cache.
type Fetcher struct {
	downloader Downloader
	clock      clockwork.Clock
	backoff    Backoff
	maxRetries int
	notFound   *NotFoundCache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates a Fetcher. Downloader is required.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		downloader: opts.Downloader,
		clock:      opts.Clock,
		backoff:    opts.Backoff,
		maxRetries: opts.MaxRetries,
		notFound:   opts.NotFound,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if f.clock == nil {
		f.clock = clockwork.NewRealClock()
	}
	if f.backoff == nil {
		f.backoff = LinearBackoff(10 * time.Second)
	}
	if f.maxRetries < 0 {
		f.maxRetries = 0
	}
	if f.notFound == nil {
		f.notFound = NewNotFoundCache()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.metrics == nil {
		f.metrics = observability.NewMetricsForTesting()
	}
	return f
}

// NotFound exposes the fetcher's memo of permanently missing URLs.
func (f *Fetcher) NotFound() *NotFoundCache {
	return f.notFound
}

// EnsureLocal makes sure the archive at rawURL is cached at localPath.
// A file that already exists is used as is without contacting the server.
func (f *Fetcher) EnsureLocal(ctx context.Context, rawURL, localPath string) Outcome {
	if f.notFound.Contains(rawURL) {
		f.metrics.ArchiveCache.WithLabelValues("not_found").Inc()
		f.logger.Debug("archive known missing", "url", rawURL)
		return PermanentlyAbsent
	}
	if _, err := os.Stat(localPath); err == nil {
		f.metrics.ArchiveCache.WithLabelValues("hit").Inc()
		return Present
	}
	f.metrics.ArchiveCache.WithLabelValues("miss").Inc()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			f.logger.Info("retrying archive download", "url", rawURL, "retry", attempt, "wait", delay)
			f.metrics.ArchiveRetries.Inc()
			if !f.sleep(ctx, delay) {
				return PermanentlyAbsent
			}
		}

		err := f.download(ctx, rawURL, localPath)
		if err == nil {
			f.metrics.ArchiveDownloads.WithLabelValues("ok").Inc()
			return Present
		}
		if ctx.Err() != nil {
			return PermanentlyAbsent
		}

		if isPermanent(err) {
			f.notFound.Add(rawURL)
			f.metrics.ArchiveDownloads.WithLabelValues("not_found").Inc()
			f.logger.Warn("archive not on server", "url", rawURL, "error", err)
			return PermanentlyAbsent
		}

		f.logger.Warn("archive download failed", "url", rawURL, "attempt", attempt+1, "error", err)
		if attempt >= f.maxRetries {
			f.metrics.ArchiveDownloads.WithLabelValues("failed").Inc()
			f.logger.Error("giving up on archive", "url", rawURL, "attempts", attempt+1)
			return PermanentlyAbsent
		}
	}
}

// download writes to a temporary file beside localPath and renames it into
// place, so readers never observe a partial archive.
func (f *Fetcher) download(ctx context.Context, rawURL, localPath string) error {
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(localPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	f.logger.Info("downloading archive", "url", rawURL)
	start := f.clock.Now()
	if err := f.downloader.Download(ctx, rawURL, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return fmt.Errorf("move archive into cache: %w", err)
	}

	elapsed := f.clock.Since(start)
	f.metrics.DownloadDuration.WithLabelValues(scheme(rawURL)).Observe(elapsed.Seconds())
	if info, err := os.Stat(localPath); err == nil {
		f.logger.Info("archive downloaded", "url", rawURL,
			"size", humanize.Bytes(uint64(info.Size())), "duration", elapsed)
	}
	return nil
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-f.clock.After(d):
		return true
	}
}

// isPermanent reports whether err carries a reply code meaning the file
// does not exist on the server.
func isPermanent(err error) bool {
	if errors.Is(err, ErrUnsupportedScheme) {
		return true
	}
	code, ok := statusCode(err)
	return ok && permanentCodes[code]
}

// statusCode extracts a three-digit server reply code, preferring typed
// errors and falling back to scanning the message.
func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	m := replyCode.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return u.Scheme
}
