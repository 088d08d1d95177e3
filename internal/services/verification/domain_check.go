package verification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduverify/backend/internal/apperr"
)

// DomainCheckTimeout bounds the outbound probe of an institution's
// website.
const DomainCheckTimeout = 10 * time.Second

// DomainCheckResult reports whether an institution's declared domain
// answers on the public internet.
type DomainCheckResult struct {
	Domain     string `json:"domain"`
	Accessible bool   `json:"accessible"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// DomainChecker probes institution domains over HTTPS.
type DomainChecker struct {
	client *http.Client
}

// NewDomainChecker builds a checker with a bounded-redirect client.
func NewDomainChecker() *DomainChecker {
	return &DomainChecker{
		client: &http.Client{
			Timeout: DomainCheckTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Check issues a HEAD request to the domain. A 2xx or 3xx answer
// counts as accessible; anything else, including a timeout, does not.
// Check never returns an error for an unreachable domain, only for
// bad input.
func (c *DomainChecker) Check(ctx context.Context, domain string) (*DomainCheckResult, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")
	if domain == "" || strings.ContainsAny(domain, " /") {
		return nil, apperr.Validationf("a bare domain name is required, e.g. university.edu")
	}

	ctx, cancel := context.WithTimeout(ctx, DomainCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://"+domain, nil)
	if err != nil {
		return nil, apperr.Validationf("invalid domain %q", domain)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &DomainCheckResult{
			Domain:     domain,
			Accessible: false,
			Detail:     "domain did not respond",
		}, nil
	}
	defer resp.Body.Close()

	return &DomainCheckResult{
		Domain:     domain,
		Accessible: resp.StatusCode < 400,
		StatusCode: resp.StatusCode,
	}, nil
}
