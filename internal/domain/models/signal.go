package models

import "time"

// Bias is a directional verdict for an asset or a category.
type Bias string

const (
	Bullish Bias = "Bullish"
	Bearish Bias = "Bearish"
	Neutral Bias = "Neutral"
)

// Opposite returns the reverse direction. Neutral stays Neutral.
func (b Bias) Opposite() Bias {
	switch b {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// AssetData is a raw observation for one ticker as returned by the fetch skills.
type AssetData struct {
	Ticker      string
	Price       float64
	MA20        float64
	RSI         *float64 // forex, stocks
	FundingRate *float64 // crypto, in percent (0.01 == 0.01%)
	Volume      float64
	AvgVolume   float64
	Stale       bool
	AsOf        time.Time
}

// VolumeRatio returns Volume/AvgVolume, or 1 when no average is known.
func (a AssetData) VolumeRatio() float64 {
	if a.AvgVolume <= 0 {
		return 1
	}
	return a.Volume / a.AvgVolume
}

// VolumeState describes how volume relates to the trend vote.
type VolumeState string

const (
	VolumeConfirms VolumeState = "confirms"
	VolumeDiverges VolumeState = "diverges"
	VolumeNeutral  VolumeState = "neutral"
)

// AssetSignal is the derived per-asset bias.
type AssetSignal struct {
	Ticker      string      `json:"ticker"`
	Price       float64     `json:"price"`
	Bias        Bias        `json:"bias"`
	Trend       Bias        `json:"trend"`
	VolumeVote  Bias        `json:"volume_vote"`
	Strength    Bias        `json:"strength"`
	VolumeState VolumeState `json:"volume_state"`
	Confluence  string      `json:"confluence"`
	Reasoning   string      `json:"reasoning"`
}

// CategoryBias is the aggregated verdict for one category.
type CategoryBias struct {
	Category          Category           `json:"category"`
	Bias              Bias               `json:"bias"`
	Confidence        int                `json:"confidence"`
	Assets            []AssetSignal      `json:"assets"`
	Levels            map[string]float64 `json:"levels"`
	Risks             []string           `json:"risks"`
	BullishCount      int                `json:"bullish_count"`
	BearishCount      int                `json:"bearish_count"`
	NeutralCount      int                `json:"neutral_count"`
	MajorityBias      Bias               `json:"majority_bias"`
	ContrarianApplied bool               `json:"contrarian_applied"`
}

// Signal is the persisted result of one category run.
type Signal struct {
	Category   Category       `json:"category"`
	Date       string         `json:"date"`
	TimeSlot   string         `json:"time_slot"`
	Bias       CategoryBias   `json:"bias"`
	Regime     RegimeSnapshot `json:"regime"`
	Summary    LLMRunResult   `json:"summary"`
	Quality    QualityFlags   `json:"quality"`
	Delta      SignalDelta    `json:"delta"`
	Importance int            `json:"importance"`
	Notify     bool           `json:"notify"`
	SkipReason string         `json:"skip_reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AssetSnapshot is the prior price/bias of one ticker.
type AssetSnapshot struct {
	Price float64
	Bias  Bias
}

// SignalSnapshot is the slice of a previously stored signal the delta needs.
type SignalSnapshot struct {
	Category Category
	Date     string
	TimeSlot string
	Bias     Bias
	Assets   map[string]AssetSnapshot
}

// AssetDelta is the per-ticker change against the previous run.
type AssetDelta struct {
	Ticker        string  `json:"ticker"`
	PriceDelta    float64 `json:"price_delta"`
	PreviousPrice float64 `json:"previous_price,omitempty"`
	PreviousBias  *Bias   `json:"previous_bias,omitempty"`
	CurrentBias   Bias    `json:"current_bias"`
	BiasChanged   bool    `json:"bias_changed"`
}

// SignalDelta is the category-level diff against the previous run.
type SignalDelta struct {
	FirstSignal   bool         `json:"first_signal"`
	BiasChanged   bool         `json:"bias_changed"`
	PreviousBias  *Bias        `json:"previous_bias"`
	CurrentBias   Bias         `json:"current_bias"`
	Assets        []AssetDelta `json:"assets"`
	BiggestGainer *AssetDelta  `json:"biggest_gainer,omitempty"`
	BiggestLoser  *AssetDelta  `json:"biggest_loser,omitempty"`
	ChangedAssets int          `json:"changed_assets"`
}

// Outlier lists every reason a ticker looked implausible.
type Outlier struct {
	Ticker  string   `json:"ticker"`
	Reasons []string `json:"reasons"`
}

// QualityFlags is additive; a clean run yields the zero value.
type QualityFlags struct {
	MissingTickers []string  `json:"missing_tickers,omitempty"`
	MacroFallback  bool      `json:"macro_fallback,omitempty"`
	MacroStale     bool      `json:"macro_stale,omitempty"`
	StaleAssets    []string  `json:"stale_assets,omitempty"`
	Outliers       []Outlier `json:"outliers,omitempty"`
}

// IsEmpty reports whether no issue was flagged.
func (q QualityFlags) IsEmpty() bool {
	return len(q.MissingTickers) == 0 && !q.MacroFallback && !q.MacroStale &&
		len(q.StaleAssets) == 0 && len(q.Outliers) == 0
}
