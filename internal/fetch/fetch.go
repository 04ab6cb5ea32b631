package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"

	"link_checker/internal/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

// ErrTooManyRedirects is returned when a redirect chain is longer than allowed.
var ErrTooManyRedirects = errors.New("too many redirects")

// Page is the final, non-redirect response of a fetch.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	// Body is decoded to UTF-8 and only present for a 200 response fetched with a body.
	Body []byte
}

// Fetcher retrieves a URL, following redirects. Any returned error is a
// navigation failure: nothing usable came back from the remote side.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, withBody bool) (*Page, error)
}

// New picks the backend named in the configuration.
func New(cfg config.LogicConfig, log logrus.FieldLogger) (Fetcher, error) {
	switch cfg.Backend {
	case config.BackendColly:
		return NewColly(cfg, log)
	default:
		return NewNative(cfg, log)
	}
}

func isRedirect(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

func decodeBody(r io.Reader, contentType string) ([]byte, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		utf8Reader = r
	}
	return io.ReadAll(utf8Reader)
}

func decodeBytes(body []byte, contentType string) []byte {
	decoded, err := decodeBody(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	return decoded
}
