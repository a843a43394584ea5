package world

import (
	"fmt"
	"strings"
)

// ReconcileMode controls whether client reports may overwrite authoritative
// state.
type ReconcileMode string

const (
	// ReconcileAuthoritative merges reports into state.
	ReconcileAuthoritative ReconcileMode = "authoritative"
	// ReconcileAdvisory accepts and counts reports but leaves state untouched.
	ReconcileAdvisory ReconcileMode = "advisory"
)

func ParseReconcileMode(s string) (ReconcileMode, bool) {
	switch ReconcileMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReconcileAuthoritative, "":
		return ReconcileAuthoritative, true
	case ReconcileAdvisory:
		return ReconcileAdvisory, true
	default:
		return ReconcileAuthoritative, false
	}
}

// PuppetReport is one client-observed puppet. Nil fields are left untouched.
// Target and TargetID are synonyms; TargetID wins when both are set.
type PuppetReport struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Position  *Vector `json:"position,omitempty"`
	IsAlive   *bool   `json:"isAlive,omitempty"`
	Target    *string `json:"target,omitempty"`
	TargetID  *string `json:"targetId,omitempty"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	IsHuman   bool    `json:"isHuman,omitempty"`
	Stats     *Stats  `json:"stats,omitempty"`
}

func (r PuppetReport) target() (string, bool) {
	if r.TargetID != nil {
		return *r.TargetID, true
	}
	if r.Target != nil {
		return *r.Target, true
	}
	return "", false
}

// PartialState is a client-supplied snapshot. Renderers send their roster
// under either "puppets" or "players".
type PartialState struct {
	Puppets     []PuppetReport `json:"puppets,omitempty"`
	Players     []PuppetReport `json:"players,omitempty"`
	Environment *Environment   `json:"environment,omitempty"`
}

func (p PartialState) Reports() []PuppetReport {
	if len(p.Players) == 0 {
		return p.Puppets
	}
	out := make([]PuppetReport, 0, len(p.Puppets)+len(p.Players))
	out = append(out, p.Puppets...)
	return append(out, p.Players...)
}

// PartialFromState renders a full state in report form.
func PartialFromState(state GameState) PartialState {
	partial := PartialState{Puppets: make([]PuppetReport, 0, len(state.Puppets))}
	env := state.Environment
	partial.Environment = &env
	for _, p := range state.Puppets {
		position := p.Position
		alive := p.IsAlive
		target := p.Target
		report := PuppetReport{
			ID:        p.ID,
			Name:      p.Name,
			Position:  &position,
			IsAlive:   &alive,
			Target:    &target,
			AvatarURL: p.AvatarURL,
		}
		if p.Stats != nil {
			stats := *p.Stats
			report.Stats = &stats
		}
		partial.Puppets = append(partial.Puppets, report)
	}
	return partial
}

type ReconcileResult struct {
	Mode               ReconcileMode `json:"mode"`
	Updated            []string      `json:"updated,omitempty"`
	Inserted           []string      `json:"inserted,omitempty"`
	Eliminated         []string      `json:"eliminated,omitempty"`
	Rejected           int           `json:"rejected,omitempty"`
	EnvironmentChanged bool          `json:"environmentChanged,omitempty"`
	Applied            bool          `json:"applied"`
}

// Reconcile merges a partial snapshot into state. Known ids are updated in
// place, unknown ids are appended to the roster. Puppets the report marks dead
// have their hunters repaired the same way an elimination does. Dead puppets
// are never revived. Invalid entries are skipped and reported through a
// wrapped ErrValidation alongside the result for the valid ones.
func Reconcile(state *GameState, partial PartialState, mode ReconcileMode) (ReconcileResult, error) {
	if mode == "" {
		mode = ReconcileAuthoritative
	}
	result := ReconcileResult{Mode: mode}
	if state == nil {
		return result, fmt.Errorf("%w: no state to reconcile", ErrNotFound)
	}

	reports := partial.Reports()
	var problems []string
	for _, report := range reports {
		if err := validateReport(report); err != nil {
			result.Rejected++
			problems = append(problems, err.Error())
		}
	}
	if partial.Environment != nil && !partial.Environment.Valid() {
		result.Rejected++
		problems = append(problems, "environment must have positive finite dimensions")
	}

	if mode == ReconcileAdvisory {
		return result, rejection(problems)
	}
	result.Applied = true

	if partial.Environment != nil && partial.Environment.Valid() && *partial.Environment != state.Environment {
		state.Environment = *partial.Environment
		result.EnvironmentChanged = true
	}

	seen := make(map[string]bool)
	var killed []string
	for _, report := range reports {
		if validateReport(report) != nil {
			continue
		}
		puppet, exists := state.Puppet(report.ID)
		if !exists {
			inserted, err := state.AddPuppet(newReportedPuppet(report, state.Environment))
			if err != nil {
				result.Rejected++
				problems = append(problems, err.Error())
				continue
			}
			seen[report.ID] = true
			result.Inserted = append(result.Inserted, inserted.ID)
			continue
		}
		wasAlive := puppet.IsAlive
		applyReport(puppet, report)
		if wasAlive && !puppet.IsAlive {
			killed = append(killed, puppet.ID)
		}
		if !seen[report.ID] {
			seen[report.ID] = true
			result.Updated = append(result.Updated, report.ID)
		}
	}

	for _, id := range killed {
		RepairChain(state, id)
	}
	result.Eliminated = killed
	return result, rejection(problems)
}

func validateReport(r PuppetReport) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("puppet report without id")
	}
	if r.Position != nil && !r.Position.Finite() {
		return fmt.Errorf("puppet %q position must be finite", r.ID)
	}
	return nil
}

func rejection(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}

func newReportedPuppet(r PuppetReport, env Environment) Puppet {
	p := Puppet{
		ID:        r.ID,
		Name:      r.Name,
		Position:  env.Center(),
		IsAlive:   true,
		AvatarURL: r.AvatarURL,
	}
	if p.Name == "" {
		p.Name = "Player " + r.ID
	}
	if p.AvatarURL == "" {
		p.AvatarURL = DefaultAvatarURL
	}
	applyReport(&p, r)
	if r.IsAlive != nil {
		p.IsAlive = *r.IsAlive
	}
	return p
}

func applyReport(p *Puppet, r PuppetReport) {
	if r.Position != nil {
		p.Position = *r.Position
	}
	if r.IsAlive != nil && !*r.IsAlive {
		p.IsAlive = false
	}
	if target, ok := r.target(); ok && target != p.ID {
		p.Target = target
	}
	if r.Stats != nil {
		stats := *r.Stats
		p.Stats = &stats
	}
	if r.AvatarURL != "" {
		p.AvatarURL = r.AvatarURL
	}
}

// RepairChain hands the dead puppet's target to every living puppet that was
// hunting it. A puppet that would inherit itself is left without a target.
// It returns the ids that inherited and the inherited target.
func RepairChain(state *GameState, deadID string) ([]string, string) {
	dead, ok := state.Puppet(deadID)
	if !ok {
		return nil, ""
	}
	inherited := nextLiving(state, dead.Target)
	var heirs []string
	for _, hunter := range HuntersOf(state, deadID) {
		if inherited == hunter.ID {
			hunter.Target = ""
		} else {
			hunter.Target = inherited
		}
		heirs = append(heirs, hunter.ID)
	}
	return heirs, inherited
}

// nextLiving follows the target chain from id until it reaches a living
// puppet.
func nextLiving(state *GameState, id string) string {
	for range state.Puppets {
		next, ok := state.Puppet(id)
		if !ok {
			return ""
		}
		if next.IsAlive {
			return next.ID
		}
		id = next.Target
	}
	return ""
}
