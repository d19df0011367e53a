// Package netutil classifies transport and Bot API errors for logs, metrics
// and retry decisions.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Error kinds returned by Classify.
const (
	KindTimeout  = "timeout"
	KindDNS      = "dns"
	KindDial     = "dial"
	KindTLS      = "tls"
	KindConflict = "conflict"
	Kind4xx      = "http_4xx"
	Kind5xx      = "http_5xx"
	KindUnknown  = "unknown"
)

var (
	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	// "telegram: <description> (<code>)"
	trailingCodeRe = regexp.MustCompile(`\((\d+)\)$`)
)

// Classify returns a low-cardinality kind for err, or "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if kind := transportKind(err); kind != "" {
		return kind
	}
	switch status := StatusFromError(err); {
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return Kind5xx
	case status >= 400:
		return Kind4xx
	}
	return KindUnknown
}

func transportKind(err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
		opErr  *net.OpError
		alert  tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return KindDial
	case errors.As(err, &alert):
		return KindTLS
	}
	return ""
}

// StatusFromError returns the Bot API error code carried by err, or 0.
func StatusFromError(err error) int {
	if err == nil {
		return 0
	}
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	if m := trailingCodeRe.FindStringSubmatch(strings.TrimSpace(err.Error())); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// IsConflict reports whether err is the answer the Bot API gives while
// another process consumes getUpdates for the same token.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if StatusFromError(err) == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conflict") && strings.Contains(msg, "getupdates")
}

// Redact returns err's message with bot tokens masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
