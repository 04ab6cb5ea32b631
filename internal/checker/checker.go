package checker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"link_checker/internal/config"
	"link_checker/internal/fetch"
	"link_checker/internal/models"
	"link_checker/internal/parser"

	"github.com/sirupsen/logrus"
)

// Checker verifies single links. It is safe for concurrent use once built.
type Checker struct {
	fetcher  fetch.Fetcher
	matcher  *parser.Matcher
	bodyMode string
	robots   *robotsPolicy
	log      logrus.FieldLogger
}

func New(f fetch.Fetcher, m *parser.Matcher, cfg config.LogicConfig, log logrus.FieldLogger) *Checker {
	c := &Checker{
		fetcher:  f,
		matcher:  m,
		bodyMode: cfg.BodyMode,
		log:      log,
	}
	if cfg.RespectRobots {
		c.robots = newRobotsPolicy(f, cfg.UserAgent, log)
	}
	return c
}

// CheckLink fetches rawURL and reports its final status and, for a 200 page,
// the configured phrases found in it. Failing to reach the server at all is
// reported as 404; only an unusable URL is an error.
func (c *Checker) CheckLink(ctx context.Context, rawURL string) (models.Outcome, error) {
	if rawURL == "" {
		return models.Outcome{}, models.ErrMalformedURI
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return models.Outcome{}, fmt.Errorf("%w: %q", models.ErrMalformedURI, rawURL)
	}

	outcome := models.Outcome{URL: rawURL, Matches: []string{}}
	log := c.log.WithField("url", rawURL)

	withBody := true
	if c.robots != nil && !c.robots.allowed(ctx, u) {
		log.Debug("robots.txt disallows the page, body will not be scanned")
		withBody = false
	}

	page, err := c.fetcher.Fetch(ctx, rawURL, withBody)
	if err != nil {
		log.Debugf("navigation failed: %v", err)
		outcome.StatusCode = http.StatusNotFound
		return outcome, nil
	}

	outcome.StatusCode = page.StatusCode
	if page.StatusCode == http.StatusOK && withBody {
		outcome.Matches = c.matcher.Find(c.bodyText(page, log))
	}

	log.WithFields(logrus.Fields{"status": outcome.StatusCode, "matches": len(outcome.Matches)}).Debug("link checked")
	return outcome, nil
}
