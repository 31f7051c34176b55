// Package fsm drives scenario generation as a durable workflow. Each step of
// the orchestrator runs as one transition of a superfly/fsm machine so CLI
// runs are tracked in the FSM store and in the run ledger.
package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/errors"
	"github.com/egress-lab/evacsim/pkg/scenario"
	"github.com/google/uuid"
	"github.com/superfly/fsm"
)

type runOutcome struct {
	result *scenario.Result
	err    error
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	orch *scenario.Orchestrator
	repo *db.Repository

	mu       sync.Mutex
	outcomes map[string]runOutcome
}

// NewMachine creates a new FSM machine with dependencies. repo may be nil.
func NewMachine(orch *scenario.Orchestrator, repo *db.Repository) *Machine {
	return &Machine{
		orch:     orch,
		repo:     repo,
		outcomes: make(map[string]runOutcome),
	}
}

// Register registers the scenario generation FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RunRequest, RunResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RunRequest, RunResponse](manager, "scenario-generate").
		Start(StateResolveAssets, m.handleResolveAssets).
		To(StateUploadFacility, m.handleUploadFacility).
		To(StateUploadCrowd, m.handleUploadCrowd).
		To(StateSynthesize, m.handleSynthesize).
		To(StateAssemble, m.handleAssemble).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

// Run starts a generation and waits for it to finish. The result lives only
// in memory and is handed to the caller once.
func (m *Machine) Run(ctx context.Context, manager *fsm.Manager, start fsm.Start[RunRequest, RunResponse], in RunRequest) (*scenario.Result, error) {
	in.RunID = uuid.NewString()

	mode, label := db.ModePair, ""
	if in.Scenario != "" {
		mode, label = db.ModeSingle, in.Scenario
	}
	if m.repo != nil {
		run := &db.Run{
			ID:            in.RunID,
			Mode:          mode,
			Scenario:      label,
			FacilityImage: in.FacilityImage,
			CrowdImage:    in.CrowdImage,
			Status:        db.StatusRunning,
		}
		if err := m.repo.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	version, err := start(ctx, in.RunID, fsm.NewRequest(&in, &RunResponse{}))
	if err != nil {
		return nil, errors.Wrap(err, "FSM start failed")
	}

	slog.Info("fsm_started", "run_id", in.RunID, "version", version)

	waitErr := manager.Wait(ctx, version)

	out, ok := m.take(in.RunID)
	if !ok {
		if waitErr != nil {
			return nil, errors.Wrap(waitErr, "FSM execution failed")
		}
		return nil, fmt.Errorf("run %s finished without a result", in.RunID)
	}
	return out.result, out.err
}

// handleResolveAssets picks the facility and crowd filenames
func (m *Machine) handleResolveAssets(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_resolve_assets", "run_id", req.Msg.RunID)

	resp := req.W.Msg
	if resp == nil {
		resp = &RunResponse{}
	}

	sel, err := m.orch.ResolveAssets(req.Msg.FacilityImage, req.Msg.CrowdImage)
	if err != nil {
		return nil, m.abort(ctx, req.Msg.RunID, resp, err)
	}

	resp.FacilityImage = sel.Facility
	resp.CrowdImage = sel.Crowd

	return fsm.NewResponse(resp), nil
}

// handleUploadFacility uploads the backdrop; failure ends the run
func (m *Machine) handleUploadFacility(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_upload_facility", "run_id", req.Msg.RunID)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	remote, err := m.orch.UploadFacility(ctx, resp.FacilityImage)
	if err != nil {
		return nil, m.abort(ctx, req.Msg.RunID, resp, err)
	}
	resp.FacilityURL = remote.URL

	return fsm.NewResponse(resp), nil
}

// handleUploadCrowd uploads the crowd image if one was selected. A failed
// upload drops the crowd image and the run continues.
func (m *Machine) handleUploadCrowd(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_upload_crowd", "run_id", req.Msg.RunID)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if resp.CrowdImage == "" {
		slog.Info("crowd_upload_skipped", "run_id", req.Msg.RunID)
		return fsm.NewResponse(resp), nil
	}

	remote, ok := m.orch.UploadCrowd(ctx, resp.CrowdImage)
	if !ok {
		resp.CrowdImage = ""
		resp.CrowdURL = ""
		return fsm.NewResponse(resp), nil
	}
	resp.CrowdURL = remote.URL

	return fsm.NewResponse(resp), nil
}

// handleSynthesize runs one or both scenarios
func (m *Machine) handleSynthesize(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_synthesize", "run_id", req.Msg.RunID, "scenario", req.Msg.Scenario)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	var flow *float64
	if req.Msg.PedestrianFlow != 0 {
		flow = &req.Msg.PedestrianFlow
	}
	refs := scenario.References(resp.FacilityURL, resp.CrowdURL)
	reqs := m.orch.BuildRequests(refs, req.Msg.Scenario, req.Msg.PromptA, req.Msg.PromptB, flow)

	outcomes, err := m.orch.SynthesizeAll(ctx, reqs)
	if err != nil {
		return nil, m.abort(ctx, req.Msg.RunID, resp, err)
	}
	resp.Outcomes = outcomes

	return fsm.NewResponse(resp), nil
}

// handleAssemble publishes the result and marks the run succeeded
func (m *Machine) handleAssemble(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_assemble", "run_id", req.Msg.RunID)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	res := &scenario.Result{
		Outcomes:      resp.Outcomes,
		FacilityImage: resp.FacilityImage,
		CrowdImage:    resp.CrowdImage,
	}
	resp.Status = db.StatusSucceeded

	if m.repo != nil {
		if err := m.repo.Finish(ctx, req.Msg.RunID, db.StatusSucceeded, resp.FacilityImage, resp.CrowdImage, ""); err != nil {
			slog.Warn("run_ledger_update_failed", "run_id", req.Msg.RunID, "error", err)
		}
	}
	m.put(req.Msg.RunID, runOutcome{result: res})

	slog.Info("fsm_complete", "run_id", req.Msg.RunID, "scenarios", len(res.Outcomes))

	return fsm.NewResponse(resp), nil
}

// abort records a terminal failure and stops the machine without retries
func (m *Machine) abort(ctx context.Context, runID string, resp *RunResponse, err error) error {
	slog.Error("fsm_run_failed", "run_id", runID, "error", err)

	resp.Status = db.StatusFailed
	resp.ErrorMessage = err.Error()

	if m.repo != nil {
		if ferr := m.repo.Finish(ctx, runID, db.StatusFailed, resp.FacilityImage, resp.CrowdImage, err.Error()); ferr != nil {
			slog.Warn("run_ledger_update_failed", "run_id", runID, "error", ferr)
		}
	}
	m.put(runID, runOutcome{err: err})

	return fsm.Abort(err)
}

func (m *Machine) put(runID string, out runOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[runID] = out
}

func (m *Machine) take(runID string) (runOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.outcomes[runID]
	delete(m.outcomes, runID)
	return out, ok
}
