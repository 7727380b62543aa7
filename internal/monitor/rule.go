package monitor

import (
	"fmt"
	"strings"

	"github.com/eveapm/regionwatch/internal/capture"
)

const (
	// MinThresholdPercent and MaxThresholdPercent bound a rule's change
	// threshold after clamping.
	MinThresholdPercent = 1
	MaxThresholdPercent = 100
)

// Rule describes one watched region of a character's client window.
type Rule struct {
	ID        string         `yaml:"id,omitempty"`
	Character string         `yaml:"character"`
	Label     string         `yaml:"label,omitempty"`
	Region    capture.Region `yaml:"region"`
	Threshold int            `yaml:"threshold"`
	Enabled   bool           `yaml:"enabled"`
}

// EffectiveKey returns the stable identity of the rule: its trimmed explicit
// ID when present, otherwise a key derived from character, label and region.
// The derived form survives reconfiguration as long as those fields do.
func (r Rule) EffectiveKey() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return fmt.Sprintf("%s|%s|%.4f|%.4f|%.4f|%.4f",
		strings.TrimSpace(r.Character), strings.TrimSpace(r.Label),
		r.Region.X, r.Region.Y, r.Region.W, r.Region.H)
}

// ClampThreshold returns the rule's threshold bounded to the valid range.
func (r Rule) ClampThreshold() int {
	if r.Threshold < MinThresholdPercent {
		return MinThresholdPercent
	}
	if r.Threshold > MaxThresholdPercent {
		return MaxThresholdPercent
	}
	return r.Threshold
}

// Validate reports whether the rule can be monitored at all. Threshold is
// clamped rather than rejected, so it is not checked here.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Character) == "" {
		return fmt.Errorf("character name is required")
	}
	if r.Region.W <= 0 || r.Region.H <= 0 {
		return fmt.Errorf("region has no area (w=%v h=%v)", r.Region.W, r.Region.H)
	}
	if r.Region.X < 0 || r.Region.X > 1 || r.Region.Y < 0 || r.Region.Y > 1 {
		return fmt.Errorf("region origin out of range (x=%v y=%v)", r.Region.X, r.Region.Y)
	}
	if r.Region.X+r.Region.W > 1.0000001 || r.Region.Y+r.Region.H > 1.0000001 {
		return fmt.Errorf("region extends past the client area (x+w=%v y+h=%v)",
			r.Region.X+r.Region.W, r.Region.Y+r.Region.H)
	}
	return nil
}
