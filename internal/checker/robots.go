package checker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"link_checker/internal/fetch"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// robotsPolicy caches one robots.txt group per scheme and host.
type robotsPolicy struct {
	fetcher   fetch.Fetcher
	userAgent string
	log       logrus.FieldLogger

	mu     sync.RWMutex
	groups map[string]*robotstxt.Group
	flight singleflight.Group
}

func newRobotsPolicy(f fetch.Fetcher, userAgent string, log logrus.FieldLogger) *robotsPolicy {
	return &robotsPolicy{
		fetcher:   f,
		userAgent: userAgent,
		log:       log,
		groups:    make(map[string]*robotstxt.Group),
	}
}

func (r *robotsPolicy) allowed(ctx context.Context, u *url.URL) bool {
	group := r.group(ctx, u.Scheme+"://"+u.Host)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (r *robotsPolicy) group(ctx context.Context, origin string) *robotstxt.Group {
	r.mu.RLock()
	group, ok := r.groups[origin]
	r.mu.RUnlock()
	if ok {
		return group
	}

	v, _, _ := r.flight.Do(origin, func() (interface{}, error) {
		group := r.load(ctx, origin)
		r.mu.Lock()
		r.groups[origin] = group
		r.mu.Unlock()
		return group, nil
	})
	return v.(*robotstxt.Group)
}

// load returns nil, meaning everything is allowed, when robots.txt can't be read.
func (r *robotsPolicy) load(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s/robots.txt", origin)
	log := r.log.WithField("robots", robotsURL)

	page, err := r.fetcher.Fetch(ctx, robotsURL, true)
	if err != nil {
		log.Debugf("can't load robots.txt, ignoring: %v", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	if err != nil {
		log.Debugf("can't parse robots.txt, ignoring: %v", err)
		return nil
	}
	return data.FindGroup(r.userAgent)
}
