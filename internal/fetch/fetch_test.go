package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"link_checker/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogic() config.LogicConfig {
	cfg := config.DefaultConfig().Logic
	cfg.TimeoutSec = 5
	return cfg
}

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

// newSite serves /ok, /missing, /hop/N (N redirects left before /ok) and /loop.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>all fine</body></html>")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		left, _ := strconv.Atoi(r.URL.Path[len("/hop/"):])
		if left <= 0 {
			http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
			return
		}
		http.Redirect(w, r, strconv.Itoa(left-1), http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/nolocation", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/cp1251", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		// "Ошибка" in windows-1251
		w.Write([]byte{0xce, 0xf8, 0xe8, 0xe1, 0xea, 0xe0})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNativeFetch(t *testing.T) {
	srv := newSite(t)
	n, err := NewNative(testLogic(), nullLogger())
	require.NoError(t, err)
	ctx := context.Background()

	page, err := n.Fetch(ctx, srv.URL+"/ok", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "all fine")

	page, err = n.Fetch(ctx, srv.URL+"/ok", false)
	require.NoError(t, err)
	assert.Nil(t, page.Body)

	page, err = n.Fetch(ctx, srv.URL+"/missing", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Nil(t, page.Body)
}

func TestNativeFollowsRedirects(t *testing.T) {
	srv := newSite(t)
	n, err := NewNative(testLogic(), nullLogger())
	require.NoError(t, err)

	// /hop/9 -> 8 ... -> 0 -> /ok is ten redirects
	page, err := n.Fetch(context.Background(), srv.URL+"/hop/9", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, srv.URL+"/ok", page.URL)

	_, err = n.Fetch(context.Background(), srv.URL+"/hop/10", true)
	assert.ErrorIs(t, err, ErrTooManyRedirects)

	_, err = n.Fetch(context.Background(), srv.URL+"/loop", true)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestNativeRedirectWithoutLocation(t *testing.T) {
	srv := newSite(t)
	n, err := NewNative(testLogic(), nullLogger())
	require.NoError(t, err)

	page, err := n.Fetch(context.Background(), srv.URL+"/nolocation", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, page.StatusCode)
}

func TestNativeDecodesCharset(t *testing.T) {
	srv := newSite(t)
	n, err := NewNative(testLogic(), nullLogger())
	require.NoError(t, err)

	page, err := n.Fetch(context.Background(), srv.URL+"/cp1251", true)
	require.NoError(t, err)
	assert.Equal(t, "Ошибка", string(page.Body))
}

func TestNativeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	n, err := NewNative(testLogic(), nullLogger())
	require.NoError(t, err)

	_, err = n.Fetch(context.Background(), addr+"/ok", true)
	assert.Error(t, err)
}

func TestNativeRateLimited(t *testing.T) {
	srv := newSite(t)
	cfg := testLogic()
	cfg.RatePerSecond = 1000
	n, err := NewNative(cfg, nullLogger())
	require.NoError(t, err)
	require.NotNil(t, n.limiters)

	for i := 0; i < 3; i++ {
		page, err := n.Fetch(context.Background(), srv.URL+"/ok", false)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, page.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Fetch(ctx, srv.URL+"/ok", false)
	assert.Error(t, err)
}

func TestCollyFetch(t *testing.T) {
	srv := newSite(t)
	cfg := testLogic()
	cfg.Backend = config.BackendColly
	f, err := New(cfg, nullLogger())
	require.NoError(t, err)
	require.IsType(t, &Colly{}, f)
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/ok", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "all fine")

	// revisiting the same URL must work
	page, err = f.Fetch(ctx, srv.URL+"/ok", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)

	page, err = f.Fetch(ctx, srv.URL+"/missing", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)

	page, err = f.Fetch(ctx, srv.URL+"/hop/3", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)

	// same cap as the native client: ten redirects pass, eleven fail
	page, err = f.Fetch(ctx, srv.URL+"/hop/9", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)

	_, err = f.Fetch(ctx, srv.URL+"/hop/10", true)
	assert.ErrorIs(t, err, ErrTooManyRedirects)

	_, err = f.Fetch(ctx, srv.URL+"/loop", true)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.Fetch(cancelled, srv.URL+"/ok", false)
	assert.ErrorIs(t, err, context.Canceled)
}
