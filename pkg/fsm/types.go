package fsm

import "github.com/egress-lab/evacsim/pkg/scenario"

// RunRequest is the FSM input. A non-empty Scenario selects single mode,
// with PromptA as its prompt.
type RunRequest struct {
	RunID          string
	FacilityImage  string
	CrowdImage     string
	PromptA        string
	PromptB        string
	Scenario       string
	PedestrianFlow float64
}

// RunResponse is the FSM output (accumulated across transitions)
type RunResponse struct {
	// From ResolveAssets
	FacilityImage string
	CrowdImage    string

	// From UploadFacility / UploadCrowd
	FacilityURL string
	CrowdURL    string

	// From Synthesize
	Outcomes []scenario.Outcome

	// From Assemble/Failed
	Status       string
	ErrorMessage string
}

// State names
const (
	StateResolveAssets  = "resolve_assets"
	StateUploadFacility = "upload_facility"
	StateUploadCrowd    = "upload_crowd"
	StateSynthesize     = "synthesize"
	StateAssemble       = "assemble"
	StateFailed         = "failed"
)
