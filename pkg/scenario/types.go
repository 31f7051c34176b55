// Package scenario turns a facility backdrop and an optional crowd image into
// evacuation scenario composites. The Orchestrator resolves and uploads the
// assets, then runs one scenario or the A/B pair through the synthesis service.
package scenario

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/egress-lab/evacsim/pkg/synth"
)

// Scenario labels used by dual mode
const (
	LabelA = "A"
	LabelB = "B"
)

// DefaultFlow is the pedestrian flow (persons/min per unit width) used when
// the caller gives none.
const DefaultFlow = 25.0

// Default prompts for the calm and rapid egress scenarios
const (
	DefaultPromptA = "Show the crowd of people calmly exiting the facility through the main exit, photorealistic with natural lighting and full color"
	DefaultPromptB = "Show the crowd of people quickly evacuating the facility through emergency exits, photorealistic with natural lighting and full color"
)

// Request is one synthesis job. ReferenceURLs lists the crowd URL first
// when present, then the facility URL.
type Request struct {
	Label          string
	Prompt         string
	ReferenceURLs  []string
	PedestrianFlow float64
}

// Outcome is the representative image of a completed scenario
type Outcome struct {
	Scenario string
	Image    synth.Image
}

// Result is what an orchestration returns. CrowdImage is empty when no crowd
// asset was used, including when its upload failed.
type Result struct {
	Outcomes      []Outcome
	FacilityImage string
	CrowdImage    string
}

// Outcome returns the outcome for a scenario label
func (r *Result) Outcome(label string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Scenario == label {
			return o, true
		}
	}
	return Outcome{}, false
}

// PairRequest is the input of dual mode. Empty fields take defaults.
type PairRequest struct {
	FacilityImage  string
	CrowdImage     string
	PromptA        string
	PromptB        string
	PedestrianFlow *float64
}

// SingleRequest is the input of single mode
type SingleRequest struct {
	FacilityImage  string
	CrowdImage     string
	Prompt         string
	PedestrianFlow *float64
	Scenario       string
}

// ParseFlow interprets a decoded JSON value as a pedestrian flow. It returns
// nil for absent, non-numeric, non-finite and zero values; any other number,
// negative included, is passed through.
func ParseFlow(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return nil
	}
	return &f
}

// References orders the reference image URLs for the synthesis service.
func References(facilityURL, crowdURL string) []string {
	if crowdURL == "" {
		return []string{facilityURL}
	}
	return []string{crowdURL, facilityURL}
}

func newRequest(label, prompt string, refs []string, flow float64) Request {
	return Request{
		Label:          label,
		Prompt:         prompt,
		ReferenceURLs:  slices.Clone(refs),
		PedestrianFlow: flow,
	}
}
