package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"link_checker/internal/config"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/sirupsen/logrus"
)

// Colly fetches through a gocolly collector. Every call works on a clone so
// callbacks never leak between concurrent fetches; the clones share transport,
// redirect policy and limits with the base collector.
//
// colly requests carry no context: ctx is checked before a fetch starts, and a
// fetch already in flight runs until it completes or hits timeout_sec.
type Colly struct {
	base        *colly.Collector
	randomAgent bool
	log         logrus.FieldLogger
}

func NewColly(cfg config.LogicConfig, log logrus.FieldLogger) (*Colly, error) {
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = int(cfg.MaxBodyBytes)
	}
	randomAgent := cfg.UserAgent == config.RandomUserAgent
	if !randomAgent {
		c.UserAgent = cfg.UserAgent
	}

	c.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		MaxIdleConnsPerHost: cfg.MaxConcurrentWorkers,
	})
	if cfg.TimeoutSec > 0 {
		c.SetRequestTimeout(time.Duration(cfg.TimeoutSec) * time.Second)
	}

	maxRedirects := cfg.MaxRedirects
	c.RedirectHandler = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("%w: stopped after %d hops at %s", ErrTooManyRedirects, maxRedirects, req.URL)
		}
		return nil
	}

	if cfg.RatePerSecond > 0 {
		err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: cfg.MaxConcurrentWorkers,
			Delay:       time.Duration(float64(time.Second) / cfg.RatePerSecond),
		})
		if err != nil {
			return nil, err
		}
	}

	return &Colly{base: c, randomAgent: randomAgent, log: log}, nil
}

func (f *Colly) Fetch(ctx context.Context, rawURL string, withBody bool) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()
	if f.randomAgent {
		extensions.RandomUserAgent(c)
	}

	var page *Page
	capture := func(r *colly.Response) {
		if r == nil || r.StatusCode == 0 {
			return
		}
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
		}
		if r.Headers != nil {
			page.ContentType = r.Headers.Get("Content-Type")
		}
		if withBody && r.StatusCode == http.StatusOK {
			page.Body = decodeBytes(r.Body, page.ContentType)
		}
	}
	c.OnResponse(capture)
	c.OnError(func(r *colly.Response, err error) {
		capture(r)
		if page == nil {
			f.log.WithField("url", rawURL).Debugf("colly fetch failed: %v", err)
		}
	})

	err := c.Visit(rawURL)
	if page != nil {
		return page, nil
	}
	if err == nil {
		err = errors.New("no response received")
	}
	return nil, err
}
