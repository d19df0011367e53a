package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"

	defaultLongPollTimeout = 10 * time.Second
	defaultPollBackoff     = 3 * time.Second
)

// ErrTransportConflict reports that another process consumes updates for the same token.
var ErrTransportConflict = errors.New("telegram: transport conflict")

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
	// OnConflict is called once when getUpdates answers 409.
	OnConflict func(error)
}

// BuildPoller returns a webhook poller or a conflict-aware long poller.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &ConflictPoller{
		Timeout:    pollTimeout(opts.LongPollTimeoutSeconds),
		OnConflict: opts.OnConflict,
	}
}

func pollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultLongPollTimeout
	}
	return time.Duration(seconds) * time.Second
}

// rawCaller is the subset of *tele.Bot used by ConflictPoller.
type rawCaller interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// ConflictPoller is a long poller that stops and reports when the Bot API
// rejects getUpdates because another consumer holds the token.
type ConflictPoller struct {
	Timeout        time.Duration
	Limit          int
	AllowedUpdates []string
	Backoff        time.Duration
	OnConflict     func(error)

	lastUpdateID int
}

type getUpdatesResponse struct {
	Result []tele.Update `json:"result"`
}

// Poll implements tele.Poller.
func (p *ConflictPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	p.poll(b, dest, stop)
}

func (p *ConflictPoller) poll(api rawCaller, dest chan tele.Update, stop chan struct{}) {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = defaultPollBackoff
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		updates, err := p.fetch(api)
		if err != nil {
			if netutil.IsConflict(err) {
				logger.TG.LogAttrs(logger.Background(), slog.LevelError, "poll.conflict",
					slog.String("status", "fail"),
					slog.String("error_kind", "conflict"),
					slog.String("err", netutil.Redact(err)),
				)
				if p.OnConflict != nil {
					p.OnConflict(fmt.Errorf("%w: %s", ErrTransportConflict, netutil.Redact(err)))
				}
				return
			}

			logger.TG.LogAttrs(logger.Background(), slog.LevelWarn, "poll.fail",
				slog.String("status", "retry"),
				slog.String("error_kind", netutil.Classify(err)),
				slog.String("err", netutil.Redact(err)),
				slog.Int64("backoff_ms", backoff.Milliseconds()),
			)
			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
			continue
		}

		for _, upd := range updates {
			p.lastUpdateID = upd.ID
			select {
			case dest <- upd:
			case <-stop:
				return
			}
		}
	}
}

func (p *ConflictPoller) fetch(api rawCaller) ([]tele.Update, error) {
	params := map[string]any{
		"offset":  p.lastUpdateID + 1,
		"timeout": int(p.Timeout / time.Second),
	}
	if p.Limit > 0 {
		params["limit"] = p.Limit
	}
	if len(p.AllowedUpdates) > 0 {
		params["allowed_updates"] = p.AllowedUpdates
	}

	data, err := api.Raw("getUpdates", params)
	if err != nil {
		return nil, err
	}

	var resp getUpdatesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates: %w", err)
	}
	return resp.Result, nil
}
