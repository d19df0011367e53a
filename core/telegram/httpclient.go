package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/cedulabot/core/telegram/netutil"
)

// Transport limits for Bot API calls.
const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	// pollSlack is added to the getUpdates window: the Bot API holds the
	// request open for the whole window before answering.
	pollSlack = 15 * time.Second

	transportRetries = 2
	transportBackoff = time.Second
)

// BuildHTTPClient returns the client telebot uses for every Bot API call.
// Its timeouts always exceed pollTimeout.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: pollTimeout + pollSlack,
	}
	return &http.Client{
		Timeout:   pollTimeout + 2*pollSlack,
		Transport: &retryTransport{next: base, retries: transportRetries, backoff: transportBackoff},
	}
}

// retryTransport repeats a round trip that failed before any response was
// received, as long as the request body can be rewound.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		retry, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff * time.Duration(attempt)):
		}
		resp, err = t.next.RoundTrip(retry)
	}
	return resp, err
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyReadAfterClose
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
