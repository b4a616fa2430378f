package testfleet

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/model"
)

// base is a known balloon that generated objects are scattered around.
type base struct {
	id        string
	lat, lon  float64
	altitudeM float64
	rateMps   float64
}

// bases mirror the critical balloons shown on the original mission control
// dashboard.
var bases = []base{
	{"WB-7284", 37.2841, -115.8245, 28450, -12.4},
	{"WB-3921", 42.1547, -98.4523, 31200, 0.2},
	{"WB-5103", 35.6892, -102.3341, 29880, -2.1},
	{"WB-8432", 39.7456, -104.9923, 26100, -15.8},
	{"WB-2067", 41.2534, -95.9345, 32450, 1.1},
	{"WB-9154", 38.5816, -109.5498, 30120, -0.8},
	{"WB-4728", 36.7783, -119.4179, 24890, -18.2},
}

// Fleet generation tuning.
const (
	scatterDeg        = 1.5  // spread of generated predictions around a base
	driftSigmaDeg     = 0.08 // typical observed-vs-predicted drift
	minUncertaintyKm  = 10.0
	uncertaintySpread = 50.0
	invalidEvery      = 97 // every Nth generated object carries zero uncertainty
	batteryFloor      = 5.0
	batterySpread     = 95.0
)

// Sounding generation tuning.
const (
	soundingTopHPa    = 20.0
	soundingGroundHPa = 1000.0
	soundingNoiseC    = 1.5
	soundingWarmC     = 14.0 // extra warmth of the layer near the ground
	warmBelowHPa      = 900.0
)

const idNamespaceName = "stratowatch/genfleet"

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(idNamespaceName))

// GenerateFleet returns n objects. The first objects are the dashboard
// balloons themselves, the rest are scattered around them. The same seed
// always yields the same fleet.
func GenerateFleet(seed uint64, n int) []model.TrackedObject {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fleet := make([]model.TrackedObject, 0, n)

	for i := 0; i < n; i++ {
		b := bases[i%len(bases)]
		obj := model.TrackedObject{ID: b.id}

		predLat, predLon := b.lat, b.lon
		if i >= len(bases) {
			obj.ID = objectID(seed, i)
			predLat = clamp(b.lat+r.NormFloat64()*scatterDeg, model.MinLatitude, model.MaxLatitude)
			predLon = clamp(b.lon+r.NormFloat64()*scatterDeg, model.MinLongitude, model.MaxLongitude)
		}

		obj.Predicted = model.GeoPoint{Lat: predLat, Lon: predLon}
		obj.Observed = model.GeoPoint{
			Lat: clamp(predLat+r.NormFloat64()*driftSigmaDeg, model.MinLatitude, model.MaxLatitude),
			Lon: clamp(predLon+r.NormFloat64()*driftSigmaDeg, model.MinLongitude, model.MaxLongitude),
		}
		obj.UncertaintyKm = round(minUncertaintyKm+r.Float64()*uncertaintySpread, 1)
		if i > 0 && i%invalidEvery == 0 {
			obj.UncertaintyKm = 0
		}

		rate := round(b.rateMps+r.NormFloat64()*3, 1)
		battery := round(batteryFloor+r.Float64()*batterySpread, 0)
		obj.Telemetry = &model.Telemetry{
			AltitudeM:       round(b.altitudeM+r.NormFloat64()*500, 0),
			VerticalRateMps: &rate,
			BatteryPercent:  &battery,
		}

		fleet = append(fleet, obj)
	}
	return fleet
}

// GenerateSounding returns levels evenly spaced in pressure from the ground
// up to soundingTopHPa, following the reference atmosphere with seeded noise
// and a warm layer near the ground.
func GenerateSounding(seed uint64, levels int) []model.SoundingLevel {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]model.SoundingLevel, 0, levels)
	step := (soundingGroundHPa - soundingTopHPa) / float64(levels-1)

	for i := 0; i < levels; i++ {
		p := round(soundingGroundHPa-float64(i)*step, 1)
		t := atmosphere.ReferenceTemperature(p) + r.NormFloat64()*soundingNoiseC
		if p >= warmBelowHPa {
			t += soundingWarmC
		}
		humidity := round(clamp(80-float64(i)*70/float64(levels)+r.NormFloat64()*5, 0, 100), 0)
		wind := round(math.Abs(5+float64(i)*0.8+r.NormFloat64()*3), 1)
		dir := round(math.Mod(250+r.NormFloat64()*20+360, 360), 0)

		out = append(out, model.SoundingLevel{
			PressureHPa:   &p,
			ObservedTempC: round(t, 1),
			HumidityPct:   &humidity,
			WindSpeedMps:  &wind,
			WindDirDeg:    &dir,
		})
	}

	// Submission order should not matter to the service.
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// objectID derives a stable balloon ID from the seed and position.
func objectID(seed uint64, i int) string {
	u := uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d/%d", seed, i)))
	return "WB-" + u.String()[:13]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
