package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// ErrUnsupportedScheme is returned for archive URLs no downloader handles.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Downloader copies the resource at rawURL into w.
type Downloader interface {
	Download(ctx context.Context, rawURL string, w io.Writer) error
}

// StatusError is a non-success reply from an archive server.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server replied %d %s", e.Code, e.Status)
}

// SchemeDownloader dispatches to a Downloader by URL scheme.
type SchemeDownloader struct {
	byScheme map[string]Downloader
}

// NewDownloader returns a downloader for http, https, and ftp archive URLs.
// timeout bounds each individual transfer.
func NewDownloader(timeout time.Duration) *SchemeDownloader {
	h := &HTTPDownloader{client: &http.Client{Timeout: timeout}}
	return &SchemeDownloader{byScheme: map[string]Downloader{
		"http":  h,
		"https": h,
		"ftp":   &FTPDownloader{timeout: timeout},
	}}
}

func (d *SchemeDownloader) Download(ctx context.Context, rawURL string, w io.Writer) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse archive url: %w", err)
	}
	dl, ok := d.byScheme[strings.ToLower(u.Scheme)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return dl.Download(ctx, rawURL, w)
}

// HTTPDownloader fetches archives over http and https.
type HTTPDownloader struct {
	client *http.Client
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read archive body: %w", err)
	}
	return nil
}

// FTPDownloader fetches archives from anonymous FTP servers.
type FTPDownloader struct {
	timeout time.Duration
}

func (d *FTPDownloader) Download(ctx context.Context, rawURL string, w io.Writer) (err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse archive url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(d.timeout))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", host, err)
	}
	defer func() {
		if qerr := conn.Quit(); qerr != nil && err == nil {
			err = fmt.Errorf("ftp quit: %w", qerr)
		}
	}()

	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return fmt.Errorf("ftp retr %s: %w", u.Path, err)
	}
	defer resp.Close()

	if _, err := io.Copy(w, resp); err != nil {
		return fmt.Errorf("read ftp transfer: %w", err)
	}
	return nil
}
