package rules

import "fmt"

// Strictness selects how aggressively marginal calls go against the
// batsman.
type Strictness string

const (
	StrictnessStrict   Strictness = "strict"
	StrictnessStandard Strictness = "standard"
	StrictnessLenient  Strictness = "lenient"
)

// Parameters tune the rule engines. Zero values fall back to the standard
// preset via Normalize.
type Parameters struct {
	// Strictness picks the preset that seeded these parameters.
	Strictness Strictness `json:"strictness"`
	// StumpTolerance multiplies the stump-zone width for in-line and
	// hitting checks. Allowed range 0.5 to 3.0.
	StumpTolerance float64 `json:"stump_tolerance"`
	// MinOutConfidence is the floor below which an OUT verdict is demoted
	// to NOT OUT (benefit of the doubt).
	MinOutConfidence float64 `json:"min_out_confidence"`
	// MinPreImpactSamples is the least trajectory samples before the pad
	// impact that LBW projection will accept.
	MinPreImpactSamples int `json:"min_pre_impact_samples"`
	// EdgeVelocityChangePx is the per-frame velocity change above which an
	// unclassified impact near the bat counts as an edge.
	EdgeVelocityChangePx float64 `json:"edge_velocity_change_px"`
	// GravityPxPerFrame2 is the downward acceleration, in pixels per frame
	// squared, applied by the path projector.
	GravityPxPerFrame2 float64 `json:"gravity_px_per_frame2"`
}

// Confidence assigned to outright LBW rejections (pitched outside leg,
// shot offered outside the line). The geometry is unambiguous, so the
// verdict is firm, but no projection backs it.
const outrightRejectConfidence = 0.35

// StandardParameters returns the standard preset.
func StandardParameters() Parameters {
	return Parameters{
		Strictness:           StrictnessStandard,
		StumpTolerance:       1.0,
		MinOutConfidence:     0.65,
		MinPreImpactSamples:  5,
		EdgeVelocityChangePx: 15,
		GravityPxPerFrame2:   0.5,
	}
}

// ParametersFor returns the preset for a strictness level. Strict narrows
// the stump zone and demands more confidence before giving OUT; lenient
// does the opposite.
func ParametersFor(level Strictness) Parameters {
	p := StandardParameters()
	switch level {
	case StrictnessStrict:
		p.Strictness = StrictnessStrict
		p.StumpTolerance = 0.8
		p.MinOutConfidence = 0.8
	case StrictnessLenient:
		p.Strictness = StrictnessLenient
		p.StumpTolerance = 1.5
		p.MinOutConfidence = 0.5
	}
	return p
}

// Normalize fills zero fields from the standard preset.
func (p Parameters) Normalize() Parameters {
	def := StandardParameters()
	if p.Strictness == "" {
		p.Strictness = def.Strictness
	}
	if p.StumpTolerance == 0 {
		p.StumpTolerance = def.StumpTolerance
	}
	if p.MinOutConfidence == 0 {
		p.MinOutConfidence = def.MinOutConfidence
	}
	if p.MinPreImpactSamples == 0 {
		p.MinPreImpactSamples = def.MinPreImpactSamples
	}
	if p.EdgeVelocityChangePx == 0 {
		p.EdgeVelocityChangePx = def.EdgeVelocityChangePx
	}
	if p.GravityPxPerFrame2 == 0 {
		p.GravityPxPerFrame2 = def.GravityPxPerFrame2
	}
	return p
}

// Validate rejects parameters outside their allowed ranges.
func (p Parameters) Validate() error {
	switch p.Strictness {
	case StrictnessStrict, StrictnessStandard, StrictnessLenient:
	default:
		return fmt.Errorf("unknown strictness %q", p.Strictness)
	}
	if p.StumpTolerance < 0.5 || p.StumpTolerance > 3.0 {
		return fmt.Errorf("stump tolerance %.2f out of range [0.5, 3.0]", p.StumpTolerance)
	}
	if p.MinOutConfidence < 0 || p.MinOutConfidence > 1 {
		return fmt.Errorf("min out confidence %.2f out of range [0, 1]", p.MinOutConfidence)
	}
	if p.MinPreImpactSamples < 1 {
		return fmt.Errorf("min pre-impact samples must be at least 1")
	}
	if p.EdgeVelocityChangePx <= 0 {
		return fmt.Errorf("edge velocity change must be positive")
	}
	return nil
}
