package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"link_checker/internal/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Native fetches with net/http and walks redirects itself so the hop limit
// and the status of every hop stay under its control.
type Native struct {
	client       *http.Client
	userAgent    string
	maxRedirects int
	maxBody      int64
	limiters     *hostLimiters
	log          logrus.FieldLogger
}

func NewNative(cfg config.LogicConfig, log logrus.FieldLogger) (*Native, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	n := &Native{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
				MaxIdleConnsPerHost: cfg.MaxConcurrentWorkers,
			},
			Jar:     jar,
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    cfg.UserAgent,
		maxRedirects: cfg.MaxRedirects,
		maxBody:      cfg.MaxBodyBytes,
		log:          log,
	}
	if cfg.RatePerSecond > 0 {
		n.limiters = newHostLimiters(cfg.RatePerSecond)
	}
	return n, nil
}

func (n *Native) Fetch(ctx context.Context, rawURL string, withBody bool) (*Page, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	for hop := 0; ; hop++ {
		if err := n.limiters.wait(ctx, current.Host); err != nil {
			return nil, err
		}

		resp, err := n.get(ctx, current)
		if err != nil {
			return nil, err
		}

		location := resp.Header.Get("Location")
		if isRedirect(resp.StatusCode) && location != "" {
			discard(resp)
			if hop >= n.maxRedirects {
				return nil, fmt.Errorf("%w: stopped after %d hops at %s", ErrTooManyRedirects, hop, current)
			}
			next, err := current.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("bad redirect location %q: %w", location, err)
			}
			n.log.WithFields(logrus.Fields{"from": current.String(), "to": next.String(), "status": resp.StatusCode}).Debug("following redirect")
			current = next
			continue
		}

		page := &Page{
			URL:         current.String(),
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
		}
		if withBody && resp.StatusCode == http.StatusOK {
			page.Body, err = n.readBody(resp)
		}
		discard(resp)
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

func (n *Native) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	return n.client.Do(req)
}

func (n *Native) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if n.maxBody > 0 {
		r = io.LimitReader(resp.Body, n.maxBody)
	}
	return decodeBody(r, resp.Header.Get("Content-Type"))
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// hostLimiters paces requests per host. A nil value never waits.
type hostLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	hosts map[string]*rate.Limiter
}

func newHostLimiters(perSecond float64) *hostLimiters {
	return &hostLimiters{
		limit: rate.Limit(perSecond),
		hosts: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiters) wait(ctx context.Context, host string) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	l, ok := h.hosts[host]
	if !ok {
		l = rate.NewLimiter(h.limit, 1)
		h.hosts[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
