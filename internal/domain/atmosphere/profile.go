package atmosphere

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Profiler builds deviation profiles. It holds configuration only and is safe
// for concurrent use.
type Profiler struct {
	threshold float64
}

// NewProfiler creates a Profiler with defaults overridden by opts.
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{threshold: DefaultDeviationThresholdC}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Threshold returns the anomaly threshold in °C.
func (p *Profiler) Threshold() float64 { return p.threshold }

// BuildProfile compares each level against the reference atmosphere. Invalid
// levels are reported in Errors by input index and never abort the build.
// Valid levels are returned sorted by descending pressure regardless of input
// order.
func (p *Profiler) BuildProfile(levels []model.SoundingLevel) model.ProfileResult {
	res := model.ProfileResult{Levels: make([]model.ProfileLevel, 0, len(levels))}
	seen := make(map[float64]int, len(levels))

	for i, lvl := range levels {
		pl, err := p.compare(lvl)
		if err == nil {
			if first, dup := seen[pl.PressureHPa]; dup {
				err = model.InvalidInputf("duplicate pressure %v hPa, first seen at level %d", pl.PressureHPa, first)
			}
		}
		if err != nil {
			res.Errors = append(res.Errors, model.LevelError{Index: i, Err: fmt.Errorf("level %d: %w", i, err)})
			continue
		}
		seen[pl.PressureHPa] = i
		res.Levels = append(res.Levels, pl)
	}

	sort.Slice(res.Levels, func(a, b int) bool {
		return res.Levels[a].PressureHPa > res.Levels[b].PressureHPa
	})

	if n := len(res.Levels); n > 0 {
		var sum float64
		for _, l := range res.Levels {
			sum += l.DeviationC
			res.MaxAbsDeviationC = math.Max(res.MaxAbsDeviationC, math.Abs(l.DeviationC))
		}
		res.MeanDeviationC = sum / float64(n)
	}
	return res
}

// compare resolves the pressure of a single level and scores it.
func (p *Profiler) compare(lvl model.SoundingLevel) (model.ProfileLevel, error) {
	pressure, err := resolvePressure(lvl)
	if err != nil {
		return model.ProfileLevel{}, err
	}
	if t := lvl.ObservedTempC; !finite(t) || t < MinObservedTempC || t > MaxObservedTempC {
		return model.ProfileLevel{}, model.InvalidInputf("observed temperature %v °C outside [%v,%v]", t, MinObservedTempC, MaxObservedTempC)
	}
	if h := lvl.HumidityPct; h != nil && (!finite(*h) || *h < 0 || *h > 100) {
		return model.ProfileLevel{}, model.InvalidInputf("humidity %v%% outside [0,100]", *h)
	}

	ref := ReferenceTemperature(pressure)
	dev := lvl.ObservedTempC - ref

	return model.ProfileLevel{
		PressureHPa:    pressure,
		HeightM:        GeopotentialHeight(pressure),
		ObservedTempC:  lvl.ObservedTempC,
		ReferenceTempC: ref,
		DeviationC:     dev,
		BandMinC:       math.Min(lvl.ObservedTempC, ref),
		BandMaxC:       math.Max(lvl.ObservedTempC, ref),
		Layer:          LayerAt(pressure),
		Anomalous:      math.Abs(dev) > p.threshold,
		HumidityPct:    lvl.HumidityPct,
		WindSpeedMps:   lvl.WindSpeedMps,
		WindDirDeg:     lvl.WindDirDeg,
	}, nil
}

// resolvePressure returns the level pressure, deriving it from altitude when
// no pressure was reported. A reported pressure always wins over altitude.
func resolvePressure(lvl model.SoundingLevel) (float64, error) {
	var pressure float64
	switch {
	case lvl.PressureHPa != nil:
		pressure = *lvl.PressureHPa
		if !finite(pressure) || pressure <= 0 {
			return 0, model.InvalidInputf("pressure %v hPa must be positive", pressure)
		}
	case lvl.AltitudeM != nil:
		if !finite(*lvl.AltitudeM) {
			return 0, model.InvalidInputf("altitude %v m is not a number", *lvl.AltitudeM)
		}
		pressure = PressureAtHeight(*lvl.AltitudeM)
	default:
		return 0, model.InvalidInputf("level has neither pressure nor altitude")
	}

	if pressure < MinPressureHPa || pressure > MaxPressureHPa {
		return 0, model.InvalidInputf("pressure %v hPa outside [%v,%v]", pressure, MinPressureHPa, MaxPressureHPa)
	}
	return pressure, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
