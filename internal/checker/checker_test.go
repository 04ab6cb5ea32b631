package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"link_checker/internal/config"
	"link_checker/internal/fetch"
	"link_checker/internal/models"
	"link_checker/internal/parser"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageHTML = `<html><head><title>Shop</title><script>var error = 1;</script></head>
<body><div>Welcome</div><div>This domain is for sale</div></body></html>`

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newSite(t *testing.T, robotsHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, pageHTML)
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "domain for sale")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "domain for sale", http.StatusInternalServerError)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robotsHits != nil {
			atomic.AddInt32(robotsHits, 1)
		}
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(t *testing.T, phrases []string, mutate func(*config.LogicConfig)) *Checker {
	t.Helper()
	cfg := config.DefaultConfig().Logic
	cfg.TimeoutSec = 5
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := fetch.New(cfg, nullLogger())
	require.NoError(t, err)
	m, err := parser.NewMatcher(phrases)
	require.NoError(t, err)
	return New(f, m, cfg, nullLogger())
}

func TestCheckLinkReachableWithoutPhrases(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, nil, nil)

	got, err := c.CheckLink(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, models.Outcome{URL: srv.URL, StatusCode: 200, Matches: []string{}}, got)
}

func TestCheckLinkFindsPhrases(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, []string{"for sale", "error"}, nil)

	got, err := c.CheckLink(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, got.StatusCode)
	// the raw body includes the script
	assert.Equal(t, []string{"error", "for sale"}, got.Matches)
}

func TestCheckLinkTextModeSkipsMarkup(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, []string{"for sale", "error"}, func(cfg *config.LogicConfig) {
		cfg.BodyMode = config.BodyModeText
	})

	got, err := c.CheckLink(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"for sale"}, got.Matches)
}

func TestCheckLinkArticleMode(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, []string{"for sale"}, func(cfg *config.LogicConfig) {
		cfg.BodyMode = config.BodyModeArticle
	})

	got, err := c.CheckLink(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, got.Matches, "for sale")
}

func TestCheckLinkNonOKStatus(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, []string{"for sale"}, nil)

	got, err := c.CheckLink(context.Background(), srv.URL+"/broken")
	require.NoError(t, err)
	assert.Equal(t, 500, got.StatusCode)
	assert.NotNil(t, got.Matches)
	assert.Empty(t, got.Matches)
}

func TestCheckLinkNavigationFailuresAre404(t *testing.T) {
	srv := newSite(t, nil)
	c := newChecker(t, nil, nil)

	got, err := c.CheckLink(context.Background(), srv.URL+"/loop")
	require.NoError(t, err)
	assert.Equal(t, 404, got.StatusCode)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	got, err = c.CheckLink(context.Background(), deadURL)
	require.NoError(t, err)
	assert.Equal(t, models.Outcome{URL: deadURL, StatusCode: 404, Matches: []string{}}, got)
}

func TestCheckLinkMalformed(t *testing.T) {
	c := newChecker(t, nil, nil)

	for _, raw := range []string{"", "google.com", "http://", "://bad", "/relative/path"} {
		_, err := c.CheckLink(context.Background(), raw)
		assert.ErrorIs(t, err, models.ErrMalformedURI, raw)
	}
}

func TestCheckLinkRespectsRobots(t *testing.T) {
	var hits int32
	srv := newSite(t, &hits)
	c := newChecker(t, []string{"for sale"}, func(cfg *config.LogicConfig) {
		cfg.RespectRobots = true
	})

	got, err := c.CheckLink(context.Background(), srv.URL+"/private/page")
	require.NoError(t, err)
	assert.Equal(t, 200, got.StatusCode)
	assert.Empty(t, got.Matches)

	got, err = c.CheckLink(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"for sale"}, got.Matches)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

type stubFetcher struct {
	page *fetch.Page
	err  error
}

func (s stubFetcher) Fetch(ctx context.Context, rawURL string, withBody bool) (*fetch.Page, error) {
	return s.page, s.err
}

func TestCheckLinkWithStubFetcher(t *testing.T) {
	m, err := parser.NewMatcher([]string{"parked"})
	require.NoError(t, err)
	cfg := config.DefaultConfig().Logic

	c := New(stubFetcher{page: &fetch.Page{StatusCode: 200, Body: []byte(strings.Repeat("PARKED ", 2))}}, m, cfg, nullLogger())
	got, err := c.CheckLink(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"parked", "parked"}, got.Matches)

	c = New(stubFetcher{err: errors.New("tls: handshake failure")}, m, cfg, nullLogger())
	got, err = c.CheckLink(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 404, got.StatusCode)
}
