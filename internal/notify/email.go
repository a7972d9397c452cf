package notify

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// emailTemplate renders the HTML body of a post notification.
var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="border-bottom: 2px solid #0085ff; padding-bottom: 10px;">{{.Title}}</h2>
<div style="background: #f8f9fa; padding: 20px; border-radius: 8px; white-space: pre-wrap;">{{.Message}}</div>
<p><a href="{{.URL}}" style="color: #0085ff;">View post on Bluesky</a></p>
</body>
</html>`))

// EmailChannel sends notifications through the Mailgun transactional API.
type EmailChannel struct {
	apiBase string
	apiKey  string
	domain  string
	from    string
	to      string
	client  *http.Client
}

// NewEmailChannel creates the email channel. The caller is expected to have
// validated the configuration; see config.EmailConfig.Complete.
func NewEmailChannel(apiKey, domain, from, to string) *EmailChannel {
	return &EmailChannel{
		apiBase: "https://api.mailgun.net/v3",
		apiKey:  apiKey,
		domain:  domain,
		from:    from,
		to:      to,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (*EmailChannel) Type() domain.ChannelType { return domain.ChannelEmail }

func (e *EmailChannel) Send(ctx context.Context, n *domain.Notification) error {
	var body strings.Builder
	if err := emailTemplate.Execute(&body, n); err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	form := url.Values{}
	form.Set("from", e.from)
	form.Set("to", e.to)
	form.Set("subject", n.Title)
	form.Set("html", body.String())
	encoded := form.Encode()

	endpoint := e.apiBase + "/" + e.domain + "/messages"

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.SetBasicAuth("api", e.apiKey)

			start := time.Now()
			resp, err := e.client.Do(req)
			if err != nil {
				log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("mailgun request failed, will retry")
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
				// Bad credentials or rejected payload will not improve on retry.
				return retry.Unrecoverable(fmt.Errorf("mailgun rejected send: HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				log.Warn().Int("status", resp.StatusCode).Msg("mailgun returned non-2xx, will retry")
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			log.Debug().
				Str("to", e.to).
				Str("subject", n.Title).
				Dur("duration", time.Since(start)).
				Msg("notification email sent")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(attempt uint, err error) {
			log.Debug().Uint("attempt", attempt).Err(err).Msg("retrying email send")
		}),
	)
}
