package delta

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
)

const (
	ScoreFirstSignal   = 100
	ScoreBiasChanged   = 50
	ScoreManyFlips     = 20
	ScoreBigMover      = 30
	ManyFlipsThreshold = 3
	BigMoverPct        = 5.0

	// NotifyThreshold is the minimum score for notify and webhook delivery.
	NotifyThreshold = 30
)

// Score rates how newsworthy a delta is.
func Score(d models.SignalDelta) int {
	score := 0
	if d.FirstSignal {
		score += ScoreFirstSignal
	}
	if d.BiasChanged {
		score += ScoreBiasChanged
	}
	if d.ChangedAssets > ManyFlipsThreshold {
		score += ScoreManyFlips
	}
	for _, m := range []*models.AssetDelta{d.BiggestGainer, d.BiggestLoser} {
		if m != nil && math.Abs(m.PriceDelta) >= BigMoverPct {
			score += ScoreBigMover
		}
	}
	return score
}

// Gate scores d and reports whether delivery should proceed; when it should
// not, reason says why.
func Gate(d models.SignalDelta) (score int, ok bool, reason string) {
	score = Score(d)
	if score >= NotifyThreshold {
		return score, true, ""
	}
	return score, false, fmt.Sprintf("importance %d below threshold %d", score, NotifyThreshold)
}
