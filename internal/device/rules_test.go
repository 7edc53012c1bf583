package device

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2)) //nolint:gosec // Deterministic test noise
}

func TestRule_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType ParamType
		wantVar  *float64
		wantFlip *float64
	}{
		{"spanish keys", `{"tipo":"float","min":0,"max":10,"variacion":0.5}`, TypeFloat, ptr(0.5), nil},
		{"double is float", `{"tipo":"double","min":0,"max":1}`, TypeFloat, nil, nil},
		{"english keys", `{"type":"integer","min":0,"max":5,"variation":2}`, TypeInt, ptr(2), nil},
		{"boolean flip", `{"tipo":"bool","prob_flip":0.2}`, TypeBoolean, nil, ptr(0.2)},
		{"unknown type kept", `{"tipo":"string","default":"x"}`, ParamType("string"), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rule
			if err := json.Unmarshal([]byte(tt.in), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if r.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", r.Type, tt.wantType)
			}
			if !equalPtr(r.Variation, tt.wantVar) {
				t.Errorf("Variation = %v, want %v", r.Variation, tt.wantVar)
			}
			if !equalPtr(r.FlipProbability, tt.wantFlip) {
				t.Errorf("FlipProbability = %v, want %v", r.FlipProbability, tt.wantFlip)
			}
		})
	}
}

func equalPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestRules_UnmarshalTemplateBlock(t *testing.T) {
	var rules Rules
	in := `{"temperatura":{"tipo":"float","min":15,"max":30},"encendida":{"tipo":"boolean"}}`
	if err := json.Unmarshal([]byte(in), &rules); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	if *rules["temperatura"].Max != 30 {
		t.Errorf("temperatura max = %v, want 30", *rules["temperatura"].Max)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v        float64
		min, max *float64
		want     float64
	}{
		{5, ptr(0), ptr(10), 5},
		{-1, ptr(0), ptr(10), 0},
		{11, ptr(0), ptr(10), 10},
		{-100, nil, ptr(10), -100},
		{100, ptr(0), nil, 100},
	}

	for _, tt := range tests {
		if got := Clamp(tt.v, tt.min, tt.max); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestInitial(t *testing.T) {
	rng := testRand()

	t.Run("float within range and rounded", func(t *testing.T) {
		r := Rule{Type: TypeFloat, Min: ptr(10), Max: ptr(20)}
		for range 500 {
			v, ok := Initial(r, rng).(float64)
			if !ok {
				t.Fatal("Initial() did not return float64")
			}
			if v < 10 || v > 20 {
				t.Fatalf("Initial() = %v, outside [10,20]", v)
			}
			if round(v, 2) != v {
				t.Fatalf("Initial() = %v, not rounded to 2 decimals", v)
			}
		}
	})

	t.Run("int within integer range", func(t *testing.T) {
		r := Rule{Type: TypeInt, Min: ptr(0.5), Max: ptr(3.5)}
		seen := map[int]bool{}
		for range 500 {
			v, ok := Initial(r, rng).(int)
			if !ok {
				t.Fatal("Initial() did not return int")
			}
			if v < 1 || v > 3 {
				t.Fatalf("Initial() = %d, outside [1,3]", v)
			}
			seen[v] = true
		}
		if len(seen) != 3 {
			t.Errorf("saw values %v, want all of 1..3", seen)
		}
	})

	t.Run("boolean", func(t *testing.T) {
		if _, ok := Initial(Rule{Type: TypeBoolean}, rng).(bool); !ok {
			t.Error("Initial() did not return bool")
		}
	})

	t.Run("default without range", func(t *testing.T) {
		if got := Initial(Rule{Type: TypeFloat, Default: 7.5}, rng); got != 7.5 {
			t.Errorf("Initial() = %v, want 7.5", got)
		}
		if got := Initial(Rule{Type: "string", Default: "eco"}, rng); got != "eco" {
			t.Errorf("Initial() = %v, want eco", got)
		}
	})
}

func TestEvolve_StaysWithinBounds(t *testing.T) {
	rng := testRand()
	rules := map[string]Rule{
		"float":       {Type: TypeFloat, Min: ptr(0), Max: ptr(1), Variation: ptr(0.4)},
		"float-def":   {Type: TypeFloat, Min: ptr(-5), Max: ptr(5)},
		"int":         {Type: TypeInt, Min: ptr(0), Max: ptr(3), Variation: ptr(2)},
		"int-default": {Type: TypeInt, Min: ptr(10), Max: ptr(12)},
	}

	for name, r := range rules {
		t.Run(name, func(t *testing.T) {
			v := Initial(r, rng)
			for i := range 5000 {
				v = Evolve(r, v, rng)
				f, ok := toFloat(v)
				if !ok {
					t.Fatalf("tick %d: value %v is not numeric", i, v)
				}
				if !r.InRange(f) {
					t.Fatalf("tick %d: value %v outside [%v,%v]", i, f, *r.Min, *r.Max)
				}
			}
		})
	}
}

func TestIntRules_ExtremeRanges(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"bounds near int64 limits", Rule{Type: TypeInt, Min: ptr(-9.2e18), Max: ptr(9.2e18)}},
		{"bounds beyond int64", Rule{Type: TypeInt, Min: ptr(-1e19), Max: ptr(1e19)}},
		{"huge variation", Rule{Type: TypeInt, Min: ptr(0), Max: ptr(10), Variation: ptr(5e18)}},
		{"infinite variation", Rule{Type: TypeInt, Min: ptr(0), Max: ptr(10), Variation: ptr(math.Inf(1))}},
		{"wide bounds and variation", Rule{Type: TypeInt, Min: ptr(-9.2e18), Max: ptr(9.2e18), Variation: ptr(9e18)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testRand()
			v := Initial(tt.rule, rng)
			for i := range 1000 {
				n, ok := v.(int)
				if !ok {
					t.Fatalf("tick %d: value %v (%T) is not an int", i, v, v)
				}
				if !tt.rule.InRange(float64(n)) {
					t.Fatalf("tick %d: value %d outside [%v,%v]", i, n, *tt.rule.Min, *tt.rule.Max)
				}
				v = Evolve(tt.rule, v, rng)
			}
		})
	}
}

func TestEvolve_FloatRoundedToThreeDecimals(t *testing.T) {
	rng := testRand()
	r := Rule{Type: TypeFloat, Min: ptr(0), Max: ptr(100), Variation: ptr(1)}
	v := any(50.0)
	for range 100 {
		v = Evolve(r, v, rng)
		f := v.(float64)
		if round(f, 3) != f {
			t.Fatalf("Evolve() = %v, not rounded to 3 decimals", f)
		}
	}
}

func TestEvolve_BooleanFlip(t *testing.T) {
	rng := testRand()

	always := Rule{Type: TypeBoolean, FlipProbability: ptr(1)}
	if got := Evolve(always, true, rng); got != false {
		t.Errorf("Evolve(p=1, true) = %v, want false", got)
	}

	never := Rule{Type: TypeBoolean, FlipProbability: ptr(0)}
	for range 100 {
		if got := Evolve(never, true, rng); got != true {
			t.Fatalf("Evolve(p=0, true) = %v, want true", got)
		}
	}
}

func TestEvolve_NonNumericCurrentReinitialised(t *testing.T) {
	r := Rule{Type: TypeFloat, Min: ptr(1), Max: ptr(2)}
	v, ok := Evolve(r, "broken", testRand()).(float64)
	if !ok || v < 1 || v > 2 {
		t.Errorf("Evolve() = %v, want a float in [1,2]", v)
	}
}

func TestEvolve_UnknownTypeUnchanged(t *testing.T) {
	r := Rule{Type: "string", Default: "eco"}
	if got := Evolve(r, "turbo", testRand()); got != "turbo" {
		t.Errorf("Evolve() = %v, want turbo", got)
	}
}
