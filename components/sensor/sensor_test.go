package sensor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/testutils/inject"
)

func sequence(values ...float64) func(ctx context.Context) (float64, error) {
	i := 0
	return func(ctx context.Context) (float64, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

func TestMedianFilter(t *testing.T) {
	ctx := context.Background()
	raw := inject.NewDistanceSensor("front")
	cfg := sensor.FilterConfig{Samples: 5, SampleDelayMs: 0, ClipCm: 100}

	t.Run("spikes are rejected", func(t *testing.T) {
		raw.DistanceFunc = sequence(30, 255, 31, 0, 29)
		f := sensor.NewMedianFilter(raw, cfg)
		test.That(t, f.Name(), test.ShouldEqual, "front")
		d, err := f.Distance(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, 30.)
	})

	t.Run("clipped", func(t *testing.T) {
		raw.DistanceFunc = sequence(180, 200, 190)
		d, err := sensor.NewMedianFilter(raw, cfg).Distance(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, 100.)
	})

	t.Run("raw error", func(t *testing.T) {
		raw.DistanceFunc = func(ctx context.Context) (float64, error) {
			return 0, errors.New("no echo")
		}
		_, err := sensor.NewMedianFilter(raw, cfg).Distance(ctx)
		test.That(t, err, test.ShouldBeError, "sensor front: no echo")
	})

	t.Run("cancelled between samples", func(t *testing.T) {
		raw.DistanceFunc = sequence(10)
		slow := cfg
		slow.SampleDelayMs = 50
		cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := sensor.NewMedianFilter(raw, slow).Distance(cancelCtx)
		test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	})
}

func TestFilterConfigValidate(t *testing.T) {
	cfg := sensor.DefaultFilterConfig()
	test.That(t, cfg.Validate("sensors.front"), test.ShouldBeNil)
	test.That(t, cfg.Samples, test.ShouldEqual, 15)

	cfg.Samples = 0
	err := cfg.Validate("sensors.front")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "samples")

	cfg = sensor.DefaultFilterConfig()
	cfg.SampleDelayMs = -1
	err = cfg.Validate("sensors.front")
	test.That(t, err.Error(), test.ShouldContainSubstring, "sample_delay_ms must not be negative")

	cfg = sensor.DefaultFilterConfig()
	cfg.ClipCm = 0
	test.That(t, cfg.Validate("sensors.front").Error(), test.ShouldContainSubstring, "clip_cm")
}

func TestIsGreenDominant(t *testing.T) {
	for _, tc := range []struct {
		c     colorful.Color
		green bool
	}{
		{colorful.Color{R: 0.1, G: 0.5, B: 0.2}, true},
		{colorful.Color{R: 0.5, G: 0.5, B: 0.2}, false},
		{colorful.Color{R: 0.1, G: 0.2, B: 0.2}, false},
		{colorful.Color{R: 0.8, G: 0.1, B: 0.1}, false},
		{colorful.Color{}, false},
	} {
		test.That(t, sensor.IsGreenDominant(tc.c), test.ShouldEqual, tc.green)
	}
}
