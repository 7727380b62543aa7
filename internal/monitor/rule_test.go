package monitor

import (
	"strings"
	"testing"

	"github.com/eveapm/regionwatch/internal/capture"
)

func TestEffectiveKey(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{
			name: "explicit id wins",
			rule: Rule{ID: "local-spike", Character: "Pilot Alpha", Label: "Local"},
			want: "local-spike",
		},
		{
			name: "explicit id trimmed",
			rule: Rule{ID: "  local-spike  "},
			want: "local-spike",
		},
		{
			name: "derived from character label and region",
			rule: Rule{
				Character: " Pilot Alpha ",
				Label:     "Local",
				Region:    capture.Region{X: 0.1, Y: 0.2, W: 0.3, H: 0.4},
			},
			want: "Pilot Alpha|Local|0.1000|0.2000|0.3000|0.4000",
		},
		{
			name: "blank id falls back to derived",
			rule: Rule{
				ID:        "   ",
				Character: "Pilot Beta",
				Region:    capture.Region{X: 0, Y: 0, W: 1, H: 1},
			},
			want: "Pilot Beta||0.0000|0.0000|1.0000|1.0000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.EffectiveKey(); got != tt.want {
				t.Errorf("EffectiveKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClampThreshold(t *testing.T) {
	tests := []struct {
		threshold int
		want      int
	}{
		{threshold: 0, want: 1},
		{threshold: -5, want: 1},
		{threshold: 1, want: 1},
		{threshold: 50, want: 50},
		{threshold: 100, want: 100},
		{threshold: 150, want: 100},
	}

	for _, tt := range tests {
		rule := Rule{Threshold: tt.threshold}
		if got := rule.ClampThreshold(); got != tt.want {
			t.Errorf("ClampThreshold() with %d = %d, want %d", tt.threshold, got, tt.want)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{
		Character: "Pilot Alpha",
		Region:    capture.Region{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
		Threshold: 12,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	full := Rule{Character: "Pilot Alpha", Region: capture.Region{X: 0, Y: 0, W: 1, H: 1}}
	if err := full.Validate(); err != nil {
		t.Fatalf("full-client region rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantMsg string
	}{
		{
			name:    "missing character",
			mutate:  func(r *Rule) { r.Character = "   " },
			wantMsg: "character name",
		},
		{
			name:    "zero width",
			mutate:  func(r *Rule) { r.Region.W = 0 },
			wantMsg: "no area",
		},
		{
			name:    "negative height",
			mutate:  func(r *Rule) { r.Region.H = -0.1 },
			wantMsg: "no area",
		},
		{
			name:    "origin out of range",
			mutate:  func(r *Rule) { r.Region.X = 1.4 },
			wantMsg: "out of range",
		},
		{
			name:    "extends past client",
			mutate:  func(r *Rule) { r.Region.X = 0.7 },
			wantMsg: "past the client area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			err := rule.Validate()
			if err == nil {
				t.Fatal("invalid rule accepted")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
