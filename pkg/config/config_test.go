package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaultsAndKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
webhooks:
  enabled: false
universe:
  crypto: [BTC]
llm:
  remote:
    model: custom-model
`))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.False(t, c.Webhooks.Enabled)
	assert.Equal(t, 10*time.Second, c.Webhooks.Timeout)
	assert.Equal(t, 10, c.Webhooks.MaxFailures)
	assert.Equal(t, []string{"BTC"}, c.Universe.Crypto)
	assert.Len(t, c.Universe.Stocks, 5)
	assert.Equal(t, "custom-model", c.LLM.Remote.Model)
	assert.Equal(t, 36*time.Hour, c.MarketData.MacroStaleAfter)
	assert.Equal(t, "signals.published", c.Kafka.Topics.Signals)
	assert.Equal(t, DefaultJobs(), c.Scheduler.Jobs)
}

func TestParse_RejectsUnknownJobCategory(t *testing.T) {
	_, err := Parse([]byte(`
scheduler:
  jobs:
    - label: bad
      spec: "0 * * * *"
      categories: [bonds]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"MARKETDATA_API_KEY": "md-key",
		"LLM_API_KEY":        "llm-key",
		"TELEGRAM_BOT_TOKEN": "bot",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"REDIS_ADDR":         "redis:6379",
		"FINNHUB_API_KEY":    "fh",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "md-key", c.MarketData.APIKey)
	assert.Equal(t, "llm-key", c.LLM.Remote.APIKey)
	assert.Equal(t, "bot", c.Telegram.BotToken)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "fh", c.Finnhub.APIKey)
	require.NoError(t, c.Validate())
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	c.Kafka.Enabled = true
	assert.Error(t, c.Validate())
}
