package device

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// ParamType is the value type of a simulated parameter.
type ParamType string

// Parameter types accepted in templates.
const (
	TypeFloat   ParamType = "float"
	TypeInt     ParamType = "int"
	TypeBoolean ParamType = "boolean"
)

// Defaults applied when a rule leaves a drift setting out.
const (
	defaultFlipProbability = 0.01
	defaultIntVariation    = 1
	// maxIntVariation keeps int deltas exact in float64.
	maxIntVariation = 1 << 52
	// defaultFloatVariationShare is the share of [min,max] a float may
	// drift per tick when no variation is declared.
	defaultFloatVariationShare = 0.05
)

// Rule describes how one parameter is initialised and how it drifts.
// Min, Max, Variation and FlipProbability are optional; a missing bound
// leaves that side unbounded.
type Rule struct {
	Type            ParamType
	Min             *float64
	Max             *float64
	Default         any
	Variation       *float64
	FlipProbability *float64
}

// Rules maps parameter names to their rules.
type Rules map[string]Rule

// ruleJSON accepts the Spanish and English key spellings used by templates.
type ruleJSON struct {
	Tipo       string   `json:"tipo"`
	Type       string   `json:"type"`
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
	Default    any      `json:"default"`
	Variacion  *float64 `json:"variacion"`
	Variation  *float64 `json:"variation"`
	ProbFlip   *float64 `json:"prob_flip"`
	FlipChance *float64 `json:"flip_probability"`
}

// UnmarshalJSON decodes a template rule such as
// {"tipo": "float", "min": 0, "max": 100, "variacion": 2.5}.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parameter rule: %w", err)
	}

	typ := raw.Tipo
	if typ == "" {
		typ = raw.Type
	}

	*r = Rule{
		Type:            normaliseType(typ),
		Min:             raw.Min,
		Max:             raw.Max,
		Default:         raw.Default,
		Variation:       firstNonNil(raw.Variacion, raw.Variation),
		FlipProbability: firstNonNil(raw.ProbFlip, raw.FlipChance),
	}
	return nil
}

func normaliseType(s string) ParamType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "double", "number":
		return TypeFloat
	case "int", "integer":
		return TypeInt
	case "boolean", "bool":
		return TypeBoolean
	default:
		return ParamType(s)
	}
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// bounded reports whether both bounds are declared.
func (r Rule) bounded() bool {
	return r.Min != nil && r.Max != nil && *r.Min <= *r.Max
}

// InRange reports whether v lies within the rule's declared bounds.
func (r Rule) InRange(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Clamp saturates v to [min,max]; a nil bound does not constrain.
func Clamp(v float64, minV, maxV *float64) float64 {
	if minV != nil && v < *minV {
		v = *minV
	}
	if maxV != nil && v > *maxV {
		v = *maxV
	}
	return v
}

// Initial produces a parameter's value at device creation.
//
// Floats are sampled uniformly in [min,max] and rounded to 2 decimals,
// ints uniformly among the integers in [min,max], booleans by coin flip.
// Without a usable range, or for an unknown type, the rule's Default is
// returned.
func Initial(r Rule, rng *rand.Rand) any {
	switch r.Type {
	case TypeFloat:
		if !r.bounded() {
			return r.Default
		}
		v := *r.Min + rng.Float64()*(*r.Max-*r.Min)
		return Clamp(round(v, 2), r.Min, r.Max)
	case TypeInt:
		lo, hi, ok := r.intBounds()
		if !ok {
			return r.Default
		}
		return lo + int(uniformSpan(rng, uint64(hi)-uint64(lo)))
	case TypeBoolean:
		return rng.IntN(2) == 1
	default:
		return r.Default
	}
}

// Evolve advances a parameter by one tick.
//
// Floats move by a uniform delta in [-variation, variation] and are
// rounded to 3 decimals; ints by a uniform integer delta. Both are clamped
// to the declared bounds. Booleans flip with the rule's flip probability.
// A numeric rule whose current value is not a number is re-initialised.
func Evolve(r Rule, current any, rng *rand.Rand) any {
	switch r.Type {
	case TypeFloat:
		cur, ok := toFloat(current)
		if !ok {
			return Initial(r, rng)
		}
		v := r.floatVariation()
		next := cur + (rng.Float64()*2-1)*v
		return Clamp(round(next, 3), r.Min, r.Max)
	case TypeInt:
		f, ok := toFloat(current)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return Initial(r, rng)
		}
		v := r.intVariation()
		next := math.Round(f) + float64(rng.Int64N(2*v+1)-v)
		return saturatingInt(Clamp(next, inwardBound(r.Min, math.Ceil), inwardBound(r.Max, math.Floor)))
	case TypeBoolean:
		cur, _ := current.(bool)
		p := defaultFlipProbability
		if r.FlipProbability != nil {
			p = *r.FlipProbability
		}
		if rng.Float64() < p {
			return !cur
		}
		return cur
	default:
		return current
	}
}

func (r Rule) floatVariation() float64 {
	if r.Variation != nil {
		return math.Abs(*r.Variation)
	}
	if r.bounded() {
		return (*r.Max - *r.Min) * defaultFloatVariationShare
	}
	return 0
}

// intVariation returns the int step, capped at maxIntVariation.
func (r Rule) intVariation() int64 {
	if r.Variation == nil {
		return defaultIntVariation
	}
	v := math.Abs(math.Round(*r.Variation))
	if !(v <= maxIntVariation) {
		return maxIntVariation
	}
	return int64(v)
}

// intBounds returns the integer range inside [min,max], saturated to int.
func (r Rule) intBounds() (lo, hi int, ok bool) {
	if !r.bounded() {
		return 0, 0, false
	}
	minV, maxV := math.Ceil(*r.Min), math.Floor(*r.Max)
	if !(minV <= maxV) {
		return 0, 0, false
	}
	return saturatingInt(minV), saturatingInt(maxV), true
}

// uniformSpan returns a uniform offset in [0,span]; span may cover all of uint64.
func uniformSpan(rng *rand.Rand, span uint64) uint64 {
	if span == math.MaxUint64 {
		return rng.Uint64()
	}
	return rng.Uint64N(span + 1)
}

// saturatingInt converts f to int, saturating at the int range.
func saturatingInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	default:
		return int(f)
	}
}

// inwardBound rounds a float bound inward for integer clamping.
func inwardBound(b *float64, inward func(float64) float64) *float64 {
	if b == nil {
		return nil
	}
	v := inward(*b)
	return &v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// toFloat converts numeric parameter values; booleans are not numbers.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
