package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domrepo "SignalForge/internal/domain/repository"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/util"
)

// TriggerMessage is the manual trigger payload. At (RFC3339 or unix
// seconds/millis) selects the slot when Date and TimeSlot are empty.
type TriggerMessage struct {
	Category string `json:"category"`
	Date     string `json:"date,omitempty"`
	TimeSlot string `json:"time_slot,omitempty"`
	At       string `json:"at,omitempty"`
	Cron     string `json:"cron,omitempty"`
}

// TriggerHandler re-runs one category slot per message. Reruns are safe
// because the store upserts by slot.
type TriggerHandler struct {
	topic   string
	runner  SlotRunner
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewTriggerHandler(topic string, runner SlotRunner, metrics domrepo.Metrics, l *applogger.Logger) *TriggerHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TriggerHandler{topic: topic, runner: runner, metrics: metrics, log: l, now: time.Now}
}

func (h *TriggerHandler) Topic() string { return h.topic }

func (h *TriggerHandler) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var m TriggerMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		h.metrics.RecordError("trigger_decode")
		return fmt.Errorf("decode trigger: %w", err)
	}

	base := h.now()
	if m.Date == "" && m.TimeSlot == "" && m.At != "" {
		t, ok := util.ParseTime(m.At)
		if !ok {
			h.metrics.RecordError("trigger_decode")
			return fmt.Errorf("decode trigger: %w: at=%q", ErrInvalidSlot, m.At)
		}
		base = t
	}
	if m.Cron == "" {
		m.Cron = "kafka"
	}

	wctx, err := ResolveSlot(m.Category, m.Date, m.TimeSlot, m.Cron, base)
	if err != nil {
		h.metrics.RecordError("trigger_decode")
		return fmt.Errorf("decode trigger: %w", err)
	}

	h.log.Info("manual trigger received",
		applogger.String("category", string(wctx.Category)),
		applogger.String("slot", wctx.Date+" "+wctx.TimeSlot),
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
	)
	if _, err := h.runner.RunSlot(ctx, wctx, nil); err != nil {
		if errors.Is(err, ErrSlotBusy) {
			// the slot is being produced right now; retrying would only duplicate it
			h.log.Info("trigger skipped, slot already running", applogger.String("key", wctx.Key()))
			return nil
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*TriggerHandler)(nil)
