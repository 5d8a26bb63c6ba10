package health

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/podscope/podscope/pkg/fetcher"

	"github.com/podscope/podscope/pkg/domain"
)

// Classification is the outcome of mapping a fetch error into the
// transient/permanent taxonomy
type Classification struct {
	Kind   domain.FailureKind
	Reason string
}

// Classify maps a fetch error to a failure classification. Only failures
// that will never recover without operator action (missing resource, revoked
// access, dead DNS name) are permanent; everything else is assumed to heal
// by waiting. Wrapped causes are examined through the whole error chain.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: domain.FailureTransient, Reason: "Unknown error"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Classification{Kind: domain.FailurePermanent, Reason: "DNS resolution failed"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Kind: domain.FailureTransient, Reason: "Socket timeout"}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return Classification{Kind: domain.FailureTransient, Reason: "Connection refused"}
	}

	var httpErr *fetcher.HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}

	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return Classification{Kind: domain.FailureTransient, Reason: msg}
}

// classifyStatus maps an HTTP status code to a classification
func classifyStatus(code int) Classification {
	switch code {
	case http.StatusNotFound:
		return Classification{Kind: domain.FailurePermanent, Reason: "HTTP 404 Not Found"}
	case http.StatusGone:
		return Classification{Kind: domain.FailurePermanent, Reason: "HTTP 410 Gone"}
	case http.StatusUnauthorized:
		return Classification{Kind: domain.FailurePermanent, Reason: "HTTP 401 Unauthorized"}
	case http.StatusForbidden:
		return Classification{Kind: domain.FailurePermanent, Reason: "HTTP 403 Forbidden"}
	case http.StatusTooManyRequests:
		return Classification{Kind: domain.FailureTransient, Reason: "HTTP 429 Rate Limited"}
	}
	// remaining 4xx and all 5xx are assumed self-healing
	return Classification{Kind: domain.FailureTransient, Reason: fmt.Sprintf("HTTP %d", code)}
}
