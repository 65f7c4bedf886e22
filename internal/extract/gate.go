package extract

import (
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/model"
)

// DefaultReadinessThreshold is the completeness a session needs before
// qualification fires. Policy constant, overridable via config.
const DefaultReadinessThreshold = 0.6

// Ready decides whether enough facts exist to qualify the lead. Two hard
// conditions, both required: a reachable contact (email) and completeness
// at or above the threshold. messageCount is telemetry only; it never
// gates, so the bot stops interrogating the moment both conditions hold.
func Ready(completeness float64, facts model.FactSet, messageCount int, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultReadinessThreshold
	}
	if facts.VisitorEmail == "" {
		zap.L().Debug("gate: not ready, missing email",
			zap.Int("message_count", messageCount),
		)
		return false
	}
	if completeness < threshold {
		zap.L().Debug("gate: not ready, below threshold",
			zap.Float64("completeness", completeness),
			zap.Float64("threshold", threshold),
			zap.Int("message_count", messageCount),
		)
		return false
	}
	zap.L().Info("gate: ready to qualify",
		zap.Float64("completeness", completeness),
		zap.Int("message_count", messageCount),
	)
	return true
}
