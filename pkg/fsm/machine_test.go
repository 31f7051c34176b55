package fsm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/scenario"
	"github.com/egress-lab/evacsim/pkg/synth"
	"github.com/egress-lab/evacsim/pkg/uploader"
	"github.com/superfly/fsm"
)

type memStore struct {
	failWhen string
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.failWhen != "" && strings.Contains(key, s.failWhen) {
		return "", errors.New("storage unavailable")
	}
	return "https://storage.test/" + string(data), nil
}

type echoSynth struct {
	mu   sync.Mutex
	seen []scenario.Request
	fail string
}

func (s *echoSynth) Synthesize(ctx context.Context, req scenario.Request) (scenario.Outcome, error) {
	s.mu.Lock()
	s.seen = append(s.seen, req)
	s.mu.Unlock()
	if req.Label == s.fail {
		return scenario.Outcome{}, &scenario.EmptyResultError{Scenario: req.Label}
	}
	return scenario.Outcome{Scenario: req.Label, Image: synth.Image{URL: "https://cdn.test/" + req.Label}}, nil
}

func setup(t *testing.T, facility, crowd []string, store *memStore, s *echoSynth) (*Machine, *db.Repository) {
	t.Helper()
	root := t.TempDir()
	write := func(category string, names []string) {
		dir := filepath.Join(root, category)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for _, n := range names {
			if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	write("facility", facility)
	write("crowd", crowd)

	repo, err := db.NewRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	locator := assets.NewLocator(root, nil)
	orch := scenario.NewOrchestrator(locator, uploader.New(locator, store, "uploads"), s)
	return NewMachine(orch, repo), repo
}

type handler func(context.Context, *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error)

// drive runs the transitions in order and stops at the first error, which
// is what the manager does for an aborted step.
func drive(ctx context.Context, m *Machine, in *RunRequest) (*RunResponse, error) {
	resp := &RunResponse{}
	req := fsm.NewRequest(in, resp)
	for _, h := range []handler{
		m.handleResolveAssets,
		m.handleUploadFacility,
		m.handleUploadCrowd,
		m.handleSynthesize,
		m.handleAssemble,
	} {
		if _, err := h(ctx, req); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func createRun(t *testing.T, repo *db.Repository, id, mode string) {
	t.Helper()
	if err := repo.Create(context.Background(), &db.Run{ID: id, Mode: mode, Status: db.StatusRunning}); err != nil {
		t.Fatalf("create run: %v", err)
	}
}

func TestMachine_PairRun(t *testing.T) {
	s := &echoSynth{}
	m, repo := setup(t, []string{"hall.png"}, []string{"crowd.png"}, &memStore{}, s)
	createRun(t, repo, "run-1", db.ModePair)

	ctx := context.Background()
	resp, err := drive(ctx, m, &RunRequest{RunID: "run-1", PedestrianFlow: 40})
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}

	if resp.FacilityURL != "https://storage.test/hall.png" || resp.CrowdURL != "https://storage.test/crowd.png" {
		t.Errorf("unexpected urls: %+v", resp)
	}
	if resp.Status != db.StatusSucceeded {
		t.Errorf("status = %q", resp.Status)
	}
	if len(s.seen) != 2 {
		t.Fatalf("expected 2 synth requests, got %d", len(s.seen))
	}
	for _, r := range s.seen {
		if r.PedestrianFlow != 40 {
			t.Errorf("flow = %v, want 40", r.PedestrianFlow)
		}
		if len(r.ReferenceURLs) != 2 || r.ReferenceURLs[0] != "https://storage.test/crowd.png" {
			t.Errorf("references = %v", r.ReferenceURLs)
		}
	}

	out, ok := m.take("run-1")
	if !ok || out.err != nil {
		t.Fatalf("expected stored result, got %+v", out)
	}
	if _, ok := out.result.Outcome(scenario.LabelB); !ok {
		t.Error("missing scenario B")
	}
	if out.result.CrowdImage != "crowd.png" {
		t.Errorf("crowd image = %q", out.result.CrowdImage)
	}
	if _, ok := m.take("run-1"); ok {
		t.Error("result should be handed out once")
	}

	run, err := repo.Get(ctx, "run-1")
	if err != nil || run == nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != db.StatusSucceeded || run.FacilityImage != "hall.png" {
		t.Errorf("unexpected ledger row: %+v", run)
	}
}

func TestMachine_SingleRunDefaultFlow(t *testing.T) {
	s := &echoSynth{}
	m, repo := setup(t, []string{"hall.png"}, nil, &memStore{}, s)
	createRun(t, repo, "run-2", db.ModeSingle)

	if _, err := drive(context.Background(), m, &RunRequest{RunID: "run-2", Scenario: "B"}); err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	if len(s.seen) != 1 {
		t.Fatalf("expected 1 synth request, got %d", len(s.seen))
	}
	got := s.seen[0]
	if got.Label != "B" || got.Prompt != scenario.DefaultPromptB || got.PedestrianFlow != scenario.DefaultFlow {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.ReferenceURLs) != 1 {
		t.Errorf("references = %v", got.ReferenceURLs)
	}
}

func TestMachine_CrowdUploadDegrades(t *testing.T) {
	s := &echoSynth{}
	m, repo := setup(t, []string{"hall.png"}, []string{"crowd.png"}, &memStore{failWhen: "/crowd/"}, s)
	createRun(t, repo, "run-3", db.ModePair)

	resp, err := drive(context.Background(), m, &RunRequest{RunID: "run-3"})
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	if resp.CrowdImage != "" || resp.CrowdURL != "" {
		t.Errorf("crowd should be dropped: %+v", resp)
	}
	out, _ := m.take("run-3")
	if out.result == nil || out.result.CrowdImage != "" {
		t.Errorf("unexpected result: %+v", out.result)
	}
}

func TestMachine_NoFacilityAborts(t *testing.T) {
	s := &echoSynth{}
	m, repo := setup(t, nil, []string{"crowd.png"}, &memStore{}, s)
	createRun(t, repo, "run-4", db.ModePair)

	ctx := context.Background()
	resp, err := drive(ctx, m, &RunRequest{RunID: "run-4"})
	if err == nil {
		t.Fatal("expected abort")
	}
	if resp.Status != db.StatusFailed {
		t.Errorf("status = %q", resp.Status)
	}
	if len(s.seen) != 0 {
		t.Error("synthesizer should not be called")
	}

	out, ok := m.take("run-4")
	if !ok || !errors.Is(out.err, assets.ErrNoFacilityAsset) {
		t.Errorf("expected ErrNoFacilityAsset, got %v", out.err)
	}

	run, _ := repo.Get(ctx, "run-4")
	if run == nil || run.Status != db.StatusFailed || run.ErrorMessage == "" {
		t.Errorf("unexpected ledger row: %+v", run)
	}
}

func TestMachine_SynthesisFailureAborts(t *testing.T) {
	s := &echoSynth{fail: "A"}
	m, repo := setup(t, []string{"hall.png"}, nil, &memStore{}, s)
	createRun(t, repo, "run-5", db.ModePair)

	if _, err := drive(context.Background(), m, &RunRequest{RunID: "run-5"}); err == nil {
		t.Fatal("expected abort")
	}
	out, _ := m.take("run-5")
	var empty *scenario.EmptyResultError
	if !errors.As(out.err, &empty) || empty.Scenario != "A" {
		t.Errorf("expected EmptyResultError for A, got %v", out.err)
	}
	if out.result != nil {
		t.Error("no partial result expected")
	}
}
