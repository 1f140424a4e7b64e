package config

// GenerationConfig is a sparse override record; nil fields take provider
// defaults. It applies process-wide and is persisted independently of
// sessions.
type GenerationConfig struct {
	Temperature           *float64 `json:"temperature,omitempty"`
	TopP                  *float64 `json:"top_p,omitempty"`
	TopK                  *int64   `json:"top_k,omitempty"`
	MaxOutputTokens       *int64   `json:"max_output_tokens,omitempty"`
	EnableSearchGrounding bool     `json:"enable_search_grounding,omitempty"`
	ImageSize             string   `json:"image_size,omitempty"`
}

// Provider-accepted ranges. Out-of-range values are clamped, not rejected,
// so a stale persisted config can never block a send.
const (
	minTemperature     = 0.0
	maxTemperature     = 2.0
	minTopP            = 0.0
	maxTopP            = 1.0
	minTopK            = 1
	maxTopK            = 100
	minOutputTokens    = 1
	maxOutputTokensCap = 65_536
)

// Clamped returns a copy with every numeric field forced into the
// provider's valid range.
func (gc GenerationConfig) Clamped() GenerationConfig {
	out := gc
	if gc.Temperature != nil {
		v := clampFloat(*gc.Temperature, minTemperature, maxTemperature)
		out.Temperature = &v
	}
	if gc.TopP != nil {
		v := clampFloat(*gc.TopP, minTopP, maxTopP)
		out.TopP = &v
	}
	if gc.TopK != nil {
		v := clampInt(*gc.TopK, minTopK, maxTopK)
		out.TopK = &v
	}
	if gc.MaxOutputTokens != nil {
		v := clampInt(*gc.MaxOutputTokens, minOutputTokens, maxOutputTokensCap)
		out.MaxOutputTokens = &v
	}
	return out
}

func (gc GenerationConfig) IsZero() bool {
	return gc.Temperature == nil && gc.TopP == nil && gc.TopK == nil &&
		gc.MaxOutputTokens == nil && !gc.EnableSearchGrounding && gc.ImageSize == ""
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
