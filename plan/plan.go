// Package plan holds the static follow-up plans: for each client segment, the
// ordered (day offset, description) rules that drive reminder generation.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Segment is the lifecycle classification of a client.
type Segment string

const (
	Buyer    Segment = "buyer"
	Shopper  Segment = "shopper"
	LongTerm Segment = "long_term"
)

// Segments lists every known segment in a stable order.
var Segments = []Segment{Buyer, Shopper, LongTerm}

// ParseSegment converts a segment name into a Segment. Unknown names are an error.
func ParseSegment(s string) (Segment, error) {
	switch seg := Segment(strings.ToLower(strings.TrimSpace(s))); seg {
	case Buyer, Shopper, LongTerm:
		return seg, nil
	default:
		return "", fmt.Errorf("unknown segment %q", s)
	}
}

func (s Segment) String() string { return string(s) }

// Step is a single follow-up rule: fire Description when exactly DayOffset
// days have elapsed since the anchor date.
type Step struct {
	DayOffset   int    `json:"days_after" yaml:"days_after"`
	Description string `json:"description" yaml:"description"`
}

// Plans maps each segment to its follow-up steps.
type Plans map[Segment][]Step

// Default returns the built-in follow-up plans.
func Default() Plans {
	return Plans{
		Buyer: {
			{DayOffset: 0, Description: "Send thank-you text"},
			{DayOffset: 3, Description: "Check in with a quick call"},
			{DayOffset: 7, Description: "Ask for product feedback or review"},
			{DayOffset: 30, Description: "Upsell or cross-sell offer"},
			{DayOffset: 365, Description: "Anniversary check-in or loyalty message"},
		},
		Shopper: {
			{DayOffset: 0, Description: "Send shopping recap or thank-you"},
			{DayOffset: 3, Description: "Share sketch insights or layout ideas"},
			{DayOffset: 7, Description: "Invite to current promotions or consult"},
			{DayOffset: 30, Description: "Check in to offer help or updates"},
		},
		LongTerm: {
			{DayOffset: 365, Description: "Happy anniversary follow-up"},
		},
	}
}

// Steps returns the steps for seg. An unknown segment has an empty plan.
func (p Plans) Steps(seg Segment) []Step {
	return p[seg]
}

// FromConfig builds Plans from a segment-name keyed table, as found in the
// config file. Segments missing from raw keep no steps; the result is validated.
func FromConfig(raw map[string][]Step) (Plans, error) {
	p := make(Plans, len(raw))
	for name, steps := range raw {
		seg, err := ParseSegment(name)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", name, err)
		}
		p[seg] = append([]Step(nil), steps...)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects negative offsets, empty descriptions and descriptions
// repeated within a segment.
func (p Plans) Validate() error {
	for seg, steps := range p {
		seen := make(map[string]bool, len(steps))
		for i, st := range steps {
			if st.DayOffset < 0 {
				return fmt.Errorf("plan %s step %d: negative day offset %d", seg, i, st.DayOffset)
			}
			desc := strings.TrimSpace(st.Description)
			if desc == "" {
				return fmt.Errorf("plan %s step %d: empty description", seg, i)
			}
			if seen[desc] {
				return fmt.Errorf("plan %s: duplicate description %q", seg, desc)
			}
			seen[desc] = true
		}
	}
	return nil
}

// Merge returns a copy of p where every segment present in override replaces
// the corresponding plan.
func (p Plans) Merge(override Plans) Plans {
	out := make(Plans, len(p)+len(override))
	for seg, steps := range p {
		out[seg] = steps
	}
	for seg, steps := range override {
		out[seg] = steps
	}
	return out
}

// Sorted returns the steps of seg ordered by day offset, for display.
func (p Plans) Sorted(seg Segment) []Step {
	steps := append([]Step(nil), p[seg]...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].DayOffset < steps[j].DayOffset })
	return steps
}
