package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/services/delta"
	xhttp "SignalForge/pkg/http"
	applogger "SignalForge/pkg/logger"
)

const defaultAPIURL = "https://api.telegram.org"

var ErrNotConfigured = errors.New("telegram bot token or chat id not configured")

// DeliveryMetrics observes notification attempts.
type DeliveryMetrics interface {
	RecordDelivery(kind, status string)
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Telegram posts HTML messages through the Bot API sendMessage method.
type Telegram struct {
	apiURL   string
	botToken string
	chatID   string
	siteURL  string
	client   *xhttp.Client
	log      *applogger.Logger
	metrics  DeliveryMetrics
}

var _ service.Notifier = (*Telegram)(nil)

type Option func(*Telegram)

func WithAPIURL(u string) Option {
	return func(t *Telegram) { t.apiURL = strings.TrimRight(u, "/") }
}

func WithClient(c *xhttp.Client) Option {
	return func(t *Telegram) { t.client = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(t *Telegram) { t.log = l }
}

func WithMetrics(m DeliveryMetrics) Option {
	return func(t *Telegram) { t.metrics = m }
}

func NewTelegram(botToken, chatID, siteURL string, opts ...Option) *Telegram {
	t := &Telegram{
		apiURL:   defaultAPIURL,
		botToken: botToken,
		chatID:   chatID,
		siteURL:  strings.TrimRight(siteURL, "/"),
		client:   xhttp.NewClient(),
		log:      applogger.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Notify sends the formatted signal. Importance gating happens upstream.
func (t *Telegram) Notify(ctx context.Context, s *models.Signal, deltaSummary string) error {
	if t.botToken == "" || t.chatID == "" {
		return ErrNotConfigured
	}

	var resp sendMessageResponse
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: sendMessageRequest{
			ChatID:                t.chatID,
			Text:                  FormatMessage(s, deltaSummary, t.siteURL),
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		},
	}, &resp)
	if err == nil && !resp.OK {
		err = fmt.Errorf("telegram api error: %s", resp.Description)
	}
	if err != nil {
		t.observe("error")
		return fmt.Errorf("send telegram message: %w", err)
	}
	t.observe("success")
	t.log.Info("telegram notification sent",
		applogger.String("category", string(s.Category)), applogger.Int("importance", s.Importance))
	return nil
}

func (t *Telegram) observe(status string) {
	if t.metrics != nil {
		t.metrics.RecordDelivery("telegram", status)
	}
}

// FormatMessage renders the HTML body. Every dynamic value is escaped.
func FormatMessage(s *models.Signal, deltaSummary, siteURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b> | %s UTC\n",
		html.EscapeString(s.Category.Title()), html.EscapeString(string(s.Bias.Bias)), html.EscapeString(s.Date+" "+s.TimeSlot))
	fmt.Fprintf(&b, "Confidence %d%% | Regime %s (%s)\n\n",
		s.Bias.Confidence, html.EscapeString(string(s.Regime.Macro.Overall)), html.EscapeString(string(s.Regime.Posture)))
	b.WriteString(html.EscapeString(s.Summary.Summary))
	b.WriteString("\n")
	if deltaSummary != "" && deltaSummary != delta.NoSignificantChanges {
		fmt.Fprintf(&b, "\n<i>%s</i>\n", html.EscapeString(deltaSummary))
	}
	if len(s.Bias.Risks) > 0 {
		b.WriteString("\nRisks:\n")
		for _, r := range s.Bias.Risks {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(r))
		}
	}
	if link := SignalLink(siteURL, s.Category); link != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Full signal</a>", html.EscapeString(link))
	}
	return strings.TrimRight(b.String(), "\n")
}

// SignalLink is the UTM-tagged category page under siteURL, or "" without a site URL.
func SignalLink(siteURL string, category models.Category) string {
	if siteURL == "" {
		return ""
	}
	u, err := url.Parse(siteURL + "/" + url.PathEscape(string(category)))
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("utm_source", "telegram")
	q.Set("utm_medium", "bot")
	q.Set("utm_campaign", "signal_"+string(category))
	u.RawQuery = q.Encode()
	return u.String()
}
