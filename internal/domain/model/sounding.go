package model

// SoundingLevel is one observed level of a vertical sounding. A level is
// located by PressureHPa or, when pressure is absent, by AltitudeM.
type SoundingLevel struct {
	PressureHPa   *float64 `json:"pressure_hpa,omitempty"`
	AltitudeM     *float64 `json:"altitude_m,omitempty"`
	ObservedTempC float64  `json:"observed_temp_c"`
	HumidityPct   *float64 `json:"humidity_pct,omitempty"`
	WindSpeedMps  *float64 `json:"wind_speed_mps,omitempty"`
	WindDirDeg    *float64 `json:"wind_dir_deg,omitempty"`
}

// Layer names the reference atmosphere layer a level falls into.
type Layer string

// Atmosphere layers.
const (
	Troposphere  Layer = "troposphere"
	Stratosphere Layer = "stratosphere"
)

// ProfileLevel is a sounding level compared against the reference atmosphere.
// BandMinC and BandMaxC bound the shaded region between observed and reference.
type ProfileLevel struct {
	PressureHPa    float64  `json:"pressure_hpa"`
	HeightM        float64  `json:"height_m"`
	ObservedTempC  float64  `json:"observed_temp_c"`
	ReferenceTempC float64  `json:"reference_temp_c"`
	DeviationC     float64  `json:"deviation_c"`
	BandMinC       float64  `json:"band_min_c"`
	BandMaxC       float64  `json:"band_max_c"`
	Layer          Layer    `json:"layer"`
	Anomalous      bool     `json:"anomalous"`
	HumidityPct    *float64 `json:"humidity_pct,omitempty"`
	WindSpeedMps   *float64 `json:"wind_speed_mps,omitempty"`
	WindDirDeg     *float64 `json:"wind_dir_deg,omitempty"`
}

// LevelError reports a rejected sounding level by its input position.
type LevelError struct {
	Index int   `json:"index"`
	Err   error `json:"-"`
}

// ProfileResult is the output of a profile build. Levels are sorted by
// descending pressure (ground first).
type ProfileResult struct {
	Levels           []ProfileLevel `json:"levels"`
	Errors           []LevelError   `json:"-"`
	MeanDeviationC   float64        `json:"mean_deviation_c"`
	MaxAbsDeviationC float64        `json:"max_abs_deviation_c"`
}
