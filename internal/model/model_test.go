package model

import "testing"

func TestDerivePhase(t *testing.T) {
	tests := []struct {
		name string
		ac   *Aircraft
		want Phase
	}{
		{"nil aircraft", nil, Unknown},
		{"on ground", &Aircraft{OnGround: true}, Ground},
		{"climbing", &Aircraft{BaroRateFpm: 1200, Position: Position{AltitudeFt: 8000}}, Climb},
		{"descending", &Aircraft{BaroRateFpm: -800, Position: Position{AltitudeFt: 31000}}, Descent},
		{"cruise", &Aircraft{BaroRateFpm: 64, Position: Position{AltitudeFt: 35000}}, Cruise},
		{"level low", &Aircraft{BaroRateFpm: 0, Position: Position{AltitudeFt: 4500}}, Level},
		{"ground beats rate", &Aircraft{OnGround: true, BaroRateFpm: 600}, Ground},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := DerivePhase(tc.ac); got != tc.want {
				t.Errorf("DerivePhase() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPhaseString(t *testing.T) {
	if got := Unknown.String(); got != "Unknown" {
		t.Errorf("Unknown.String() = %q", got)
	}
	if got := Cruise.String(); got != "Cruise" {
		t.Errorf("Cruise.String() = %q", got)
	}
}
