package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	xhttp "SignalForge/pkg/http"
	applogger "SignalForge/pkg/logger"
)

const (
	EnvelopeVersion = "1"
	EventSignal     = "signal.published"
	SignatureHeader = "X-Signature-256"

	DefaultTimeout     = 10 * time.Second
	DefaultMaxFailures = 10
)

// DeliveryMetrics observes webhook attempts.
type DeliveryMetrics interface {
	RecordDelivery(kind, status string)
}

// Dispatcher posts a signal envelope to every active subscriber of its
// category concurrently.
type Dispatcher struct {
	store       repository.WebhookStore
	client      *xhttp.Client
	timeout     time.Duration
	maxFailures int
	log         *applogger.Logger
	metrics     DeliveryMetrics
	now         func() time.Time
}

var _ service.WebhookDispatcher = (*Dispatcher)(nil)

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(w *Dispatcher) { w.timeout = d }
}

func WithMaxFailures(n int) Option {
	return func(w *Dispatcher) { w.maxFailures = n }
}

func WithClient(c *xhttp.Client) Option {
	return func(w *Dispatcher) { w.client = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(w *Dispatcher) { w.log = l }
}

func WithMetrics(m DeliveryMetrics) Option {
	return func(w *Dispatcher) { w.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(w *Dispatcher) { w.now = now }
}

func NewDispatcher(store repository.WebhookStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		timeout:     DefaultTimeout,
		maxFailures: DefaultMaxFailures,
		log:         applogger.Nop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.client == nil {
		d.client = xhttp.NewClient(xhttp.WithTimeout(d.timeout))
	}
	return d
}

// Dispatch never fails as a whole; each subscriber gets its own result.
func (d *Dispatcher) Dispatch(ctx context.Context, s *models.Signal) []models.DeliveryResult {
	subs, err := d.store.ListActive(ctx, s.Category)
	if err != nil {
		d.log.Error("list webhook subscribers failed", applogger.Error(err))
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(models.WebhookEnvelope{
		Version:   EnvelopeVersion,
		Event:     EventSignal,
		Timestamp: d.now().UTC(),
		Data:      s,
	})
	if err != nil {
		d.log.Error("encode webhook envelope failed", applogger.Error(err))
		return nil
	}

	results := make([]models.DeliveryResult, len(subs))
	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.deliver(ctx, subs[i], body)
		}(i)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.WebhookSubscriber, body []byte) models.DeliveryResult {
	res := models.DeliveryResult{SubscriberID: sub.ID}
	log := d.log.With(applogger.String("subscriber", sub.ID))

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "SignalForge-Webhook/" + EnvelopeVersion,
	}
	if sub.Secret != "" {
		headers[SignatureHeader] = Sign(sub.Secret, body)
	}

	start := d.now()
	resp, err := d.client.SendRequest(cctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     sub.URL,
		Headers: headers,
		Body:    body,
	})
	res.Duration = d.now().Sub(start)
	if err == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		res.StatusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}

	if err == nil {
		res.Success = true
		d.observe("success")
		if serr := d.store.RecordSuccess(ctx, sub.ID); serr != nil {
			log.Warn("reset webhook failure streak failed", applogger.Error(serr))
		}
		return res
	}

	res.Error = err.Error()
	d.observe("error")
	disabled, serr := d.store.RecordFailure(ctx, sub.ID, d.maxFailures)
	if serr != nil {
		log.Warn("record webhook failure failed", applogger.Error(serr))
	}
	res.Disabled = disabled
	if disabled {
		log.Warn("webhook subscriber disabled after repeated failures", applogger.Int("max_failures", d.maxFailures))
	} else {
		log.Warn("webhook delivery failed", applogger.Error(err))
	}
	return res
}

func (d *Dispatcher) observe(status string) {
	if d.metrics != nil {
		d.metrics.RecordDelivery("webhook", status)
	}
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header in constant time.
func Verify(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
