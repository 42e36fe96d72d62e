package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/phuslu/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
	"github.com/kerbaras/shelf/pkg/utils"
)

// RetryPolicy selects which page errors are retried. Retries happen
// immediately, without backoff.
type RetryPolicy struct {
	ConnectionErrors bool
	TLSErrors        bool
	// MaxAttempts caps the attempts per page. 0 retries forever.
	MaxAttempts int
}

// DefaultRetryPolicy retries connection and TLS failures forever.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{ConnectionErrors: true, TLSErrors: true}
}

// Allows reports whether err belongs to a retried class.
func (p RetryPolicy) Allows(err error) bool {
	if err == nil {
		return false
	}
	return (p.ConnectionErrors && isConnectionError(err)) || (p.TLSErrors && isTLSError(err))
}

func (p RetryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// transportError marks a request that never produced a complete response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || isTLSError(err) {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSError(err error) bool {
	var (
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
		verifyErr *tls.CertificateVerificationError
		authErr   x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		certErr   x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &certErr)
}

// HeaderFunc supplies extra request headers for a page.
type HeaderFunc func(chapter *data.Chapter, page *data.Page) http.Header

// Endpoints fetches single pages and writes them to disk.
type Endpoints struct {
	bus     *Bus
	logger  *log.Logger
	retry   RetryPolicy
	limiter *rate.Limiter
	headers HeaderFunc
}

// EndpointsOption configures Endpoints.
type EndpointsOption func(*Endpoints)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) EndpointsOption {
	return func(e *Endpoints) {
		e.retry = p
	}
}

// WithRequestsPerSecond throttles requests. Zero or less disables it.
func WithRequestsPerSecond(rps float64) EndpointsOption {
	return func(e *Endpoints) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithHeaders sets the per-page header hook.
func WithHeaders(fn HeaderFunc) EndpointsOption {
	return func(e *Endpoints) {
		e.headers = fn
	}
}

// WithSourceHeaders uses the header hook of src, if it has one.
func WithSourceHeaders(src sources.Source) EndpointsOption {
	return WithHeaders(func(chapter *data.Chapter, page *data.Page) http.Header {
		return sources.PageHeaders(src, chapter, page)
	})
}

func NewEndpoints(bus *Bus, logger *log.Logger, opts ...EndpointsOption) *Endpoints {
	e := &Endpoints{bus: bus, logger: logger, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Page fetches target and writes it to target.Path. Transient failures
// allowed by the retry policy are retried; any other failure is reported
// on the bus and the page is skipped, leaving no file behind. Only
// filesystem and context errors are returned. It reports whether the page
// was written.
func (e *Endpoints) Page(ctx context.Context, session *sources.Session, target tree.Target) (bool, error) {
	e.bus.Dispatch(Event{Kind: EventPage, Target: &target, Chapter: target.Chapter})
	defer e.bus.Dispatch(Event{Kind: EventPageEnd, Target: &target, Chapter: target.Chapter})

	var header http.Header
	if e.headers != nil {
		header = e.headers(target.Chapter, target.Page)
	}
	written, err := e.fetch(ctx, session, target.Page.URL, header, target.Path, &target)
	if written {
		e.bus.Dispatch(Event{Kind: EventPageWrite, Target: &target, Chapter: target.Chapter})
	}
	return written, err
}

// Cover fetches the cover image at url into path, following the same
// retry and skip rules as Page.
func (e *Endpoints) Cover(ctx context.Context, session *sources.Session, url, path string) (bool, error) {
	e.bus.Dispatch(Event{Kind: EventCover, URL: url})
	return e.fetch(ctx, session, url, nil, path, nil)
}

func (e *Endpoints) fetch(ctx context.Context, session *sources.Session, url string, header http.Header, path string, target *tree.Target) (bool, error) {
	var body []byte
	for attempt := 1; ; attempt++ {
		var err error
		body, err = e.get(ctx, session, url, header)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if e.retry.Allows(err) && !e.retry.exhausted(attempt) {
			e.logger.Debug().Str("url", url).Int("attempt", attempt).Err(err).Msg("retrying page")
			e.bus.Dispatch(Event{Kind: EventPageErrorAllowed, URL: url, Target: target, Attempt: attempt, Err: err})
			continue
		}
		e.skip(url, target, attempt, err)
		return false, nil
	}

	content, err := encodeAs(body, filepath.Ext(path))
	if err != nil {
		e.skip(url, target, 1, err)
		return false, nil
	}
	if err := utils.WriteFileAtomic(path, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Endpoints) skip(url string, target *tree.Target, attempt int, err error) {
	e.logger.Warn().Str("url", url).Err(err).Msg("skipping page")
	e.bus.Dispatch(Event{Kind: EventPageErrorRejected, URL: url, Target: target, Attempt: attempt, Err: err})
}

func (e *Endpoints) get(ctx context.Context, session *sources.Session, url string, header http.Header) ([]byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := session.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sources.StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}
	return body, nil
}

// encodeAs decodes body as an image and returns the bytes to store under
// extension ext. Bodies already in the right format are kept as-is.
func encodeAs(body []byte, ext string) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	want := strings.ToLower(strings.TrimPrefix(ext, "."))
	if want == "jpg" {
		want = "jpeg"
	}
	if format == want {
		return body, nil
	}

	var buf bytes.Buffer
	switch want {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("unsupported image format %q", want)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", want, err)
	}
	return buf.Bytes(), nil
}
