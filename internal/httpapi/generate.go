package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/scenario"
	"github.com/egress-lab/evacsim/pkg/synth"
)

// pedestrianFlow is kept as any so numbers, numeric strings and garbage all
// reach scenario.ParseFlow.
type pairBody struct {
	FacilityImage  string `json:"facilityImage"`
	CrowdImage     string `json:"crowdImage"`
	PromptA        string `json:"promptA"`
	PromptB        string `json:"promptB"`
	PedestrianFlow any    `json:"pedestrianFlow"`
}

type singleBody struct {
	FacilityImage  string `json:"facilityImage"`
	CrowdImage     string `json:"crowdImage"`
	Prompt         string `json:"prompt"`
	PedestrianFlow any    `json:"pedestrianFlow"`
	Scenario       string `json:"scenario"`
}

type pairResponse struct {
	Success       bool        `json:"success"`
	ScenarioA     synth.Image `json:"scenarioA"`
	ScenarioB     synth.Image `json:"scenarioB"`
	FacilityImage string      `json:"facilityImage"`
	CrowdImage    *string     `json:"crowdImage"`
}

type singleResponse struct {
	Success  bool        `json:"success"`
	Image    synth.Image `json:"image"`
	Scenario string      `json:"scenario"`
}

// GeneratePair runs scenarios A and B
func (a *App) GeneratePair(w http.ResponseWriter, r *http.Request) {
	var body pairBody
	if err := decodeBody(r, &body); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ctx := r.Context()
	runID := a.startRun(ctx, db.ModePair, "", body.FacilityImage, body.CrowdImage)

	res, err := a.gen.GenerateBoth(ctx, scenario.PairRequest{
		FacilityImage:  body.FacilityImage,
		CrowdImage:     body.CrowdImage,
		PromptA:        body.PromptA,
		PromptB:        body.PromptB,
		PedestrianFlow: scenario.ParseFlow(body.PedestrianFlow),
	})
	a.finishRun(ctx, runID, body.FacilityImage, body.CrowdImage, res, err)
	if err != nil {
		a.generateError(w, "generate_pair_failed", err)
		return
	}

	outA, _ := res.Outcome(scenario.LabelA)
	outB, _ := res.Outcome(scenario.LabelB)
	a.json(w, http.StatusOK, pairResponse{
		Success:       true,
		ScenarioA:     outA.Image,
		ScenarioB:     outB.Image,
		FacilityImage: res.FacilityImage,
		CrowdImage:    optional(res.CrowdImage),
	})
}

// GenerateSingle runs one labelled scenario
func (a *App) GenerateSingle(w http.ResponseWriter, r *http.Request) {
	var body singleBody
	if err := decodeBody(r, &body); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ctx := r.Context()
	runID := a.startRun(ctx, db.ModeSingle, body.Scenario, body.FacilityImage, body.CrowdImage)

	res, err := a.gen.GenerateOne(ctx, scenario.SingleRequest{
		FacilityImage:  body.FacilityImage,
		CrowdImage:     body.CrowdImage,
		Prompt:         body.Prompt,
		PedestrianFlow: scenario.ParseFlow(body.PedestrianFlow),
		Scenario:       body.Scenario,
	})
	a.finishRun(ctx, runID, body.FacilityImage, body.CrowdImage, res, err)
	if err != nil {
		a.generateError(w, "generate_single_failed", err)
		return
	}
	if len(res.Outcomes) == 0 {
		a.error(w, http.StatusInternalServerError, "no scenario outcome", "")
		return
	}

	out := res.Outcomes[0]
	a.json(w, http.StatusOK, singleResponse{
		Success:  true,
		Image:    out.Image,
		Scenario: out.Scenario,
	})
}

// generateError maps the orchestration error taxonomy to a status code
func (a *App) generateError(w http.ResponseWriter, event string, err error) {
	slog.Error(event, "error", err)

	code := http.StatusInternalServerError
	if errors.Is(err, scenario.ErrNoFacilityAsset) {
		code = http.StatusBadRequest
	}
	a.error(w, code, err.Error(), rootCause(err).Error())
}

// decodeBody treats an empty body as an empty request
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
