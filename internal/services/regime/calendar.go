package regime

import (
	"fmt"
	"strings"
	"time"

	"SignalForge/internal/domain/models"
)

// EventRule is the dampening window around a scheduled release.
type EventRule struct {
	Code       string
	Aliases    []string
	Window     time.Duration
	Multiplier float64
}

// DefaultEventRules is the built-in calendar table.
var DefaultEventRules = []EventRule{
	{Code: "FOMC", Aliases: []string{"FOMC", "FED INTEREST RATE", "FEDERAL FUNDS RATE"}, Window: 24 * time.Hour, Multiplier: 0.5},
	{Code: "CPI", Aliases: []string{"CPI", "CONSUMER PRICE INDEX"}, Window: 4 * time.Hour, Multiplier: 0.6},
	{Code: "NFP", Aliases: []string{"NFP", "NON-FARM", "NONFARM"}, Window: 4 * time.Hour, Multiplier: 0.6},
	{Code: "PPI", Aliases: []string{"PPI", "PRODUCER PRICE INDEX"}, Window: 2 * time.Hour, Multiplier: 0.8},
	{Code: "GDP", Aliases: []string{"GDP", "GROSS DOMESTIC PRODUCT"}, Window: 2 * time.Hour, Multiplier: 0.8},
	{Code: "ECB", Aliases: []string{"ECB"}, Window: 12 * time.Hour, Multiplier: 0.7},
}

// MaxEventWindow bounds the calendar lookup range on either side of now.
func MaxEventWindow(rules []EventRule) time.Duration {
	var w time.Duration
	for _, r := range rules {
		if r.Window > w {
			w = r.Window
		}
	}
	return w
}

func matchRule(rules []EventRule, name string) (EventRule, bool) {
	upper := strings.ToUpper(name)
	for _, r := range rules {
		for _, a := range r.Aliases {
			if strings.Contains(upper, a) {
				return r, true
			}
		}
	}
	return EventRule{}, false
}

// ClassifyCalendar returns the events whose window covers now, and one
// dampening factor per distinct active rule. Unknown events are ignored.
func ClassifyCalendar(rules []EventRule, events []models.EconomicEvent, now time.Time) (models.CalendarSignal, []models.DampeningFactor) {
	sig := models.CalendarSignal{Dampening: 1}
	var factors []models.DampeningFactor
	seen := make(map[string]bool)

	for _, ev := range events {
		rule, ok := matchRule(rules, ev.Name)
		if !ok || seen[rule.Code] {
			continue
		}
		dist := now.Sub(ev.Time)
		if dist < 0 {
			dist = -dist
		}
		if dist > rule.Window {
			continue
		}
		seen[rule.Code] = true
		sig.ActiveEvents = append(sig.ActiveEvents, rule.Code)
		factors = append(factors, models.DampeningFactor{
			Source:     "calendar",
			Reason:     fmt.Sprintf("%s at %s", rule.Code, ev.Time.UTC().Format("2006-01-02 15:04")),
			Multiplier: rule.Multiplier,
		})
		if rule.Multiplier < sig.Dampening {
			sig.Dampening = rule.Multiplier
		}
	}
	return sig, factors
}
