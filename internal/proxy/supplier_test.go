package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupplierKeepsWorkingProxiesInOrder(t *testing.T) {
	probe := func(_ context.Context, proxyURL string) bool {
		return !strings.Contains(proxyURL, "dead")
	}

	s := NewSupplier(context.Background(), []string{"http://a", "http://dead", "http://b"}, probe)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "http://a", s.Get())
	assert.Equal(t, "http://b", s.Get())
	assert.Equal(t, "http://a", s.Get())
}

func TestEmptySupplier(t *testing.T) {
	s := NewSupplier(context.Background(), nil, nil)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Get())
}

func TestHealthProbeThroughProxy(t *testing.T) {
	// A forward proxy receives the absolute target URL and answers for it.
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	probe := HealthProbe("http://catalog.invalid/health", time.Second)

	assert.True(t, probe(context.Background(), healthy.URL))
	assert.False(t, probe(context.Background(), broken.URL))
}
