package search

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
)

// NewIndexService wraps the backing Index according to the [search] section.
// With search disabled (or no backing Index) a no-op service is returned.
func NewIndexService(backing interfaces.Index, logger arbor.ILogger, config *common.SearchConfig) interfaces.Index {
	if !config.Enabled || backing == nil {
		logger.Warn().
			Bool("enabled", config.Enabled).
			Msg("Index disabled: similarity matching will return no matches")
		return NewDisabledIndexService(logger)
	}

	logger.Info().
		Str("timeout", config.Timeout).
		Float64("rate_limit", config.RateLimit).
		Msg("Initializing index service")
	return NewIndexServiceWithLimits(backing, logger, config)
}
