package scenario

import (
	"fmt"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/uploader"
)

// ErrNoFacilityAsset means no facility backdrop could be resolved.
var ErrNoFacilityAsset = assets.ErrNoFacilityAsset

// UploadError is a failed asset upload. Fatal for the facility asset only.
type UploadError = uploader.UploadError

// SynthesisError is a failed call to the synthesis service
type SynthesisError struct {
	Scenario string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("scenario %s: synthesis failed: %v", e.Scenario, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// EmptyResultError means the service completed without producing an image
type EmptyResultError struct {
	Scenario string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no images generated for scenario %s", e.Scenario)
}
