package script

import (
	"fmt"

	"stlforge/internal/config"
	"stlforge/internal/services"
)

// Params are the caller-tunable segmentation and meshing settings for one
// conversion. A zero Threshold or SmoothingIterations is replaced by the
// configured default in Normalize; Decimation is taken as given, since zero
// is a valid value meaning no decimation.
type Params struct {
	Threshold           int
	Smoothing           bool
	SmoothingIterations int
	Decimation          float64
}

// DefaultParams returns the configured default parameter set.
func DefaultParams(cfg *config.Config) Params {
	return Params{
		Threshold:           cfg.Conversion.ThresholdDefault,
		Smoothing:           true,
		SmoothingIterations: cfg.Conversion.SmoothingIterations,
		Decimation:          cfg.Conversion.DecimationDefault,
	}
}

// Normalize fills unset fields from the configured defaults. Decimation has
// no unset sentinel; callers wanting the configured default start from
// DefaultParams.
func (p *Params) Normalize(cfg *config.Config) {
	if p.Threshold == 0 {
		p.Threshold = cfg.Conversion.ThresholdDefault
	}
	if p.SmoothingIterations == 0 {
		p.SmoothingIterations = cfg.Conversion.SmoothingIterations
	}
}

// Validate checks the parameter set against configured bounds. It must pass
// before a job is created; nothing is written to disk on failure.
func (p Params) Validate(cfg *config.Config) error {
	if p.Threshold < cfg.Conversion.ThresholdMin || p.Threshold > cfg.Conversion.ThresholdMax {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("threshold %d outside allowed range [%d, %d]",
				p.Threshold, cfg.Conversion.ThresholdMin, cfg.Conversion.ThresholdMax), nil)
	}
	if p.Smoothing && p.SmoothingIterations < 1 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("smoothing iterations must be at least 1, got %d", p.SmoothingIterations), nil)
	}
	if p.Decimation < 0 || p.Decimation >= 1 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("decimation must be in [0, 1), got %g", p.Decimation), nil)
	}
	return nil
}
