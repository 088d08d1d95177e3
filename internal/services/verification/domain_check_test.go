package verification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/apperr"
)

func TestDomainCheckValidatesInput(t *testing.T) {
	c := NewDomainChecker()
	for _, bad := range []string{"", "   ", "has space.edu", "path/in/domain"} {
		_, err := c.Check(context.Background(), bad)
		assert.True(t, apperr.IsValidation(err), "input %q should be rejected", bad)
	}
}

func TestDomainCheckReachableDomain(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &DomainChecker{client: srv.Client()}
	domain := strings.TrimPrefix(srv.URL, "https://")

	result, err := c.Check(context.Background(), domain)
	require.NoError(t, err)
	assert.True(t, result.Accessible)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestDomainCheckServerErrorNotAccessible(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &DomainChecker{client: srv.Client()}
	domain := strings.TrimPrefix(srv.URL, "https://")

	result, err := c.Check(context.Background(), domain)
	require.NoError(t, err)
	assert.False(t, result.Accessible)
}

func TestDomainCheckUnreachableDomain(t *testing.T) {
	c := NewDomainChecker()

	// Port 1 is never listening locally; the probe fails fast.
	result, err := c.Check(context.Background(), "127.0.0.1:1")
	require.NoError(t, err)
	assert.False(t, result.Accessible)
	assert.NotEmpty(t, result.Detail)
}
