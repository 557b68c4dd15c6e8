package sensor

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// FilterConfig is how a median filter samples its source.
type FilterConfig struct {
	Samples       int     `json:"samples"`
	SampleDelayMs int     `json:"sample_delay_ms"`
	ClipCm        float64 `json:"clip_cm"`
}

// DefaultFilterConfig takes 15 samples 10ms apart and clips at one meter.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{Samples: 15, SampleDelayMs: 10, ClipCm: 100}
}

// Validate ensures all parts of the config are valid.
func (cfg *FilterConfig) Validate(path string) error {
	if cfg.Samples <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "samples")
	}
	if cfg.SampleDelayMs < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("sample_delay_ms must not be negative, got %d", cfg.SampleDelayMs))
	}
	if cfg.ClipCm <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "clip_cm")
	}
	return nil
}

// MedianFilter smooths a noisy range finder. Every reading takes cfg.Samples raw samples, so a
// call blocks for roughly Samples*SampleDelay.
type MedianFilter struct {
	raw DistanceSensor
	cfg FilterConfig
}

var _ DistanceSensor = &MedianFilter{}

// NewMedianFilter wraps raw.
func NewMedianFilter(raw DistanceSensor, cfg FilterConfig) *MedianFilter {
	return &MedianFilter{raw: raw, cfg: cfg}
}

// Name returns the name of the wrapped sensor.
func (f *MedianFilter) Name() string {
	return f.raw.Name()
}

// Distance returns the median of a burst of raw samples, clipped to the configured maximum.
func (f *MedianFilter) Distance(ctx context.Context) (float64, error) {
	samples := make([]float64, 0, f.cfg.Samples)
	delay := time.Duration(f.cfg.SampleDelayMs) * time.Millisecond
	for i := 0; i < f.cfg.Samples; i++ {
		d, err := f.raw.Distance(ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "sensor %s", f.raw.Name())
		}
		samples = append(samples, d)
		if delay > 0 && !utils.SelectContextOrWait(ctx, delay) {
			return 0, ctx.Err()
		}
	}
	median, err := stats.Median(samples)
	if err != nil {
		return 0, errors.Wrapf(err, "sensor %s", f.raw.Name())
	}
	if median > f.cfg.ClipCm {
		median = f.cfg.ClipCm
	}
	return median, nil
}
