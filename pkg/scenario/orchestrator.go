package scenario

import (
	"context"
	"log/slog"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/uploader"
)

// State is a step of an orchestration
type State string

const (
	StateResolvingAssets   State = "resolving_assets"
	StateUploadingFacility State = "uploading_facility"
	StateUploadingCrowd    State = "uploading_crowd"
	StateCrowdSkipped      State = "crowd_skipped"
	StateSynthesizing      State = "synthesizing"
	StateAssembling        State = "assembling"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// AssetResolver picks the facility and crowd filenames
type AssetResolver interface {
	Resolve(facility, crowd string) (assets.Selection, error)
}

// AssetUploader uploads one local asset
type AssetUploader interface {
	Upload(ctx context.Context, c assets.Category, filename string) uploader.Result
}

// Synthesizer produces the outcome of one scenario request
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Outcome, error)
}

// Orchestrator runs dual and single mode generations
type Orchestrator struct {
	resolver    AssetResolver
	uploader    AssetUploader
	synth       Synthesizer
	promptA     string
	promptB     string
	defaultFlow float64
	observer    func(State)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithDefaultPrompts overrides the baked-in A and B prompts. Empty values keep the built-in ones.
func WithDefaultPrompts(a, b string) Option {
	return func(o *Orchestrator) {
		if a != "" {
			o.promptA = a
		}
		if b != "" {
			o.promptB = b
		}
	}
}

// WithDefaultFlow overrides DefaultFlow
func WithDefaultFlow(flow float64) Option {
	return func(o *Orchestrator) {
		if flow > 0 {
			o.defaultFlow = flow
		}
	}
}

// WithStateObserver reports every state the orchestration enters
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// NewOrchestrator wires the locator, uploader and synthesizer together
func NewOrchestrator(resolver AssetResolver, up AssetUploader, s Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:    resolver,
		uploader:    up,
		synth:       s,
		promptA:     DefaultPromptA,
		promptB:     DefaultPromptB,
		defaultFlow: DefaultFlow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateBoth runs scenarios A and B concurrently against the same
// reference images. Either failure fails the call and no outcome is returned.
func (o *Orchestrator) GenerateBoth(ctx context.Context, in PairRequest) (*Result, error) {
	slog.Info("orchestration_start", "mode", "pair", "facility", in.FacilityImage, "crowd", in.CrowdImage)

	return o.run(ctx, in.FacilityImage, in.CrowdImage, func(refs []string) []Request {
		return o.BuildRequests(refs, "", in.PromptA, in.PromptB, in.PedestrianFlow)
	})
}

// GenerateOne runs a single labelled scenario
func (o *Orchestrator) GenerateOne(ctx context.Context, in SingleRequest) (*Result, error) {
	label := o.Label(in.Scenario)
	slog.Info("orchestration_start", "mode", "single", "scenario", label, "facility", in.FacilityImage, "crowd", in.CrowdImage)

	return o.run(ctx, in.FacilityImage, in.CrowdImage, func(refs []string) []Request {
		return o.BuildRequests(refs, label, in.Prompt, "", in.PedestrianFlow)
	})
}

func (o *Orchestrator) run(ctx context.Context, facility, crowd string, build func(refs []string) []Request) (res *Result, err error) {
	defer func() {
		if err != nil {
			o.enter(StateFailed)
			slog.Error("orchestration_failed", "error", err)
		}
	}()

	o.enter(StateResolvingAssets)
	sel, err := o.ResolveAssets(facility, crowd)
	if err != nil {
		return nil, err
	}

	o.enter(StateUploadingFacility)
	facilityAsset, err := o.UploadFacility(ctx, sel.Facility)
	if err != nil {
		return nil, err
	}

	crowdURL := ""
	if sel.Crowd != "" {
		o.enter(StateUploadingCrowd)
		if crowdAsset, ok := o.UploadCrowd(ctx, sel.Crowd); ok {
			crowdURL = crowdAsset.URL
		} else {
			sel.Crowd = ""
		}
	}
	if sel.Crowd == "" {
		o.enter(StateCrowdSkipped)
	}

	o.enter(StateSynthesizing)
	outcomes, err := o.SynthesizeAll(ctx, build(References(facilityAsset.URL, crowdURL)))
	if err != nil {
		return nil, err
	}

	o.enter(StateAssembling)
	res = Assemble(sel, outcomes)

	o.enter(StateDone)
	slog.Info("orchestration_complete", "scenarios", len(res.Outcomes), "facility", res.FacilityImage, "crowd", res.CrowdImage)
	return res, nil
}

// ResolveAssets selects the facility and crowd filenames
func (o *Orchestrator) ResolveAssets(facility, crowd string) (assets.Selection, error) {
	return o.resolver.Resolve(facility, crowd)
}

// UploadFacility uploads the facility asset. A degraded upload is fatal.
func (o *Orchestrator) UploadFacility(ctx context.Context, filename string) (uploader.RemoteAsset, error) {
	res := o.uploader.Upload(ctx, assets.Facility, filename)
	if !res.Uploaded() {
		return uploader.RemoteAsset{}, res.Err
	}
	return res.Remote, nil
}

// UploadCrowd uploads the crowd asset. A degraded upload is logged and
// reported as false so the caller continues without a crowd image.
func (o *Orchestrator) UploadCrowd(ctx context.Context, filename string) (uploader.RemoteAsset, bool) {
	res := o.uploader.Upload(ctx, assets.Crowd, filename)
	if !res.Uploaded() {
		slog.Warn("crowd_upload_degraded", "crowd", filename, "error", res.Err)
		return uploader.RemoteAsset{}, false
	}
	return res.Remote, true
}

// SynthesizeAll runs every request concurrently. It returns on the first
// error without waiting for the others; their jobs keep running and their
// outcomes are dropped.
func (o *Orchestrator) SynthesizeAll(ctx context.Context, reqs []Request) ([]Outcome, error) {
	if len(reqs) == 1 {
		out, err := o.synth.Synthesize(ctx, reqs[0])
		if err != nil {
			return nil, err
		}
		return []Outcome{out}, nil
	}

	type done struct {
		index   int
		outcome Outcome
		err     error
	}
	results := make(chan done, len(reqs))
	for i, req := range reqs {
		go func() {
			out, err := o.synth.Synthesize(ctx, req)
			results <- done{index: i, outcome: out, err: err}
		}()
	}

	outcomes := make([]Outcome, len(reqs))
	for range reqs {
		d := <-results
		if d.err != nil {
			return nil, d.err
		}
		outcomes[d.index] = d.outcome
	}
	return outcomes, nil
}

// Flow returns flow when it is set and non-zero, the default otherwise
func (o *Orchestrator) Flow(flow *float64) float64 {
	if flow == nil || *flow == 0 {
		return o.defaultFlow
	}
	return *flow
}

// Label returns the scenario label for single mode, defaulting to A
func (o *Orchestrator) Label(label string) string {
	return firstNonEmpty(label, LabelA)
}

// Prompt returns prompt, or the default prompt of label A or B when empty
func (o *Orchestrator) Prompt(label, prompt string) string {
	if prompt != "" {
		return prompt
	}
	if label == LabelB {
		return o.promptB
	}
	return o.promptA
}

// BuildRequests returns the requests of dual mode, or a single request when
// label is set.
func (o *Orchestrator) BuildRequests(refs []string, label, prompt, promptB string, flow *float64) []Request {
	f := o.Flow(flow)
	if label != "" {
		return []Request{newRequest(label, o.Prompt(label, prompt), refs, f)}
	}
	return []Request{
		newRequest(LabelA, firstNonEmpty(prompt, o.promptA), refs, f),
		newRequest(LabelB, firstNonEmpty(promptB, o.promptB), refs, f),
	}
}

// Assemble builds the result from the selection actually used
func Assemble(sel assets.Selection, outcomes []Outcome) *Result {
	return &Result{
		Outcomes:      outcomes,
		FacilityImage: sel.Facility,
		CrowdImage:    sel.Crowd,
	}
}

func (o *Orchestrator) enter(s State) {
	slog.Debug("orchestration_state", "state", s)
	if o.observer != nil {
		o.observer(s)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
