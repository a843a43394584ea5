package world

import (
	"fmt"
	"strings"
)

// PuppetConfig describes one roster entry in a start request. Type selects the
// agent kind; the remaining fields are kind specific or cosmetic.
type PuppetConfig struct {
	Type      string        `json:"type"`
	Model     string        `json:"model,omitempty"`
	Name      string        `json:"name,omitempty"`
	Stats     *Stats        `json:"stats,omitempty"`
	Avatar    *AvatarConfig `json:"avatar,omitempty"`
	AvatarURL string        `json:"avatarUrl,omitempty"`
	Script    string        `json:"script,omitempty"`
	Endpoint  string        `json:"endpoint,omitempty"`
}

// MatchConfig is the payload of a start request.
type MatchConfig struct {
	Puppets     []PuppetConfig `json:"puppets"`
	Environment *Environment   `json:"environment,omitempty"`
	Seed        *int64         `json:"seed,omitempty"`
}

func (c MatchConfig) Validate() error {
	if len(c.Puppets) == 0 {
		return fmt.Errorf("%w: match requires at least one puppet", ErrValidation)
	}
	for i, p := range c.Puppets {
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("%w: puppet %d has no type", ErrValidation, i)
		}
	}
	if c.Environment != nil && !c.Environment.Valid() {
		return fmt.Errorf("%w: environment must have positive finite dimensions", ErrValidation)
	}
	return nil
}

// ResolvedEnvironment returns the configured environment or the default arena.
func (c MatchConfig) ResolvedEnvironment() Environment {
	if c.Environment == nil || !c.Environment.Valid() {
		return DefaultEnvironment()
	}
	return *c.Environment
}

// PuppetName returns the display name for roster slot i.
func (c PuppetConfig) PuppetName(i int) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Puppet %d", i+1)
}
