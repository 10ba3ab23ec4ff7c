package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const maxConcurrentProbes = 20

// Supplier hands out proxies in round-robin order. Get returns "" when the
// pool is empty.
type Supplier interface {
	Get() string
	Len() int
}

// Probe reports whether the catalog is reachable through proxyURL.
type Probe func(ctx context.Context, proxyURL string) bool

type supplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewSupplier keeps the proxies that pass probe, preserving their order.
func NewSupplier(ctx context.Context, proxies []string, probe Probe) Supplier {
	if len(proxies) == 0 {
		return &supplier{}
	}

	log.Infof("🔄 Probing %d proxies...", len(proxies))

	ok := make([]bool, len(proxies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, proxyURL := range proxies {
		i, proxyURL := i, proxyURL
		g.Go(func() error {
			ok[i] = probe(gctx, proxyURL)
			if ok[i] {
				log.Debugf("✅ Proxy %s is working", proxyURL)
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
			}
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(proxies))
	for i, proxyURL := range proxies {
		if ok[i] {
			valid = append(valid, proxyURL)
		}
	}

	log.Infof("✅ Proxy pool ready with %d of %d proxies", len(valid), len(proxies))
	return &supplier{proxies: valid}
}

func (p *supplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)
	return proxy
}

func (p *supplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

// HealthProbe returns a Probe that issues GET healthURL through the proxy.
func HealthProbe(healthURL string, timeout time.Duration) Probe {
	return func(ctx context.Context, proxyURL string) bool {
		client := resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetProxy(proxyURL)

		resp, err := client.R().
			SetContext(ctx).
			Get(healthURL)
		if err != nil {
			log.Debugf("Proxy probe failed for %s: %v", proxyURL, err)
			return false
		}
		if resp.IsError() {
			log.Debugf("Proxy probe failed for %s with status: %s", proxyURL, resp.Status())
			return false
		}
		return true
	}
}
