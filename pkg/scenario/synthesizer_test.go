package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/egress-lab/evacsim/pkg/synth"
)

type fakeQueue struct {
	output   *synth.Output
	err      error
	statuses []string
	gotModel string
	gotInput synth.Input
}

func (q *fakeQueue) Subscribe(ctx context.Context, modelID string, input synth.Input, updates chan<- synth.QueueStatus) (*synth.Output, error) {
	q.gotModel = modelID
	q.gotInput = input
	for _, s := range q.statuses {
		updates <- synth.QueueStatus{Status: s}
	}
	return q.output, q.err
}

func TestServiceSynthesizer_FirstImageWins(t *testing.T) {
	q := &fakeQueue{
		output: &synth.Output{Images: []synth.Image{
			{URL: "https://cdn.test/first.png", Width: 1024},
			{URL: "https://cdn.test/second.png"},
		}},
		statuses: []string{synth.StatusInQueue, synth.StatusInProgress, synth.StatusCompleted},
	}

	var mu sync.Mutex
	var events []StatusEvent
	s := NewServiceSynthesizer(q, "fal-ai/alpha-image-232/edit-image", func(e StatusEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	out, err := s.Synthesize(context.Background(), Request{
		Label:          LabelA,
		Prompt:         "calm",
		ReferenceURLs:  []string{"https://s/crowd.jpg", "https://s/lobby.png"},
		PedestrianFlow: 40,
	})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	if out.Scenario != LabelA || out.Image.URL != "https://cdn.test/first.png" || out.Image.Width != 1024 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if q.gotModel != "fal-ai/alpha-image-232/edit-image" {
		t.Errorf("unexpected model %q", q.gotModel)
	}
	if q.gotInput.PedestrianFlow != 40 || q.gotInput.ImageURLs[0] != "https://s/crowd.jpg" || q.gotInput.Prompt != "calm" {
		t.Errorf("unexpected input: %+v", q.gotInput)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 || events[0].Scenario != LabelA || events[2].Status != synth.StatusCompleted {
		t.Errorf("unexpected status events: %+v", events)
	}
}

func TestServiceSynthesizer_Errors(t *testing.T) {
	boom := errors.New("http 500")

	tests := []struct {
		name  string
		queue *fakeQueue
		check func(t *testing.T, err error)
	}{
		{
			name:  "service error",
			queue: &fakeQueue{err: boom},
			check: func(t *testing.T, err error) {
				var se *SynthesisError
				if !errors.As(err, &se) || se.Scenario != LabelB || !errors.Is(err, boom) {
					t.Errorf("expected SynthesisError wrapping cause, got %v", err)
				}
			},
		},
		{
			name:  "no images",
			queue: &fakeQueue{output: &synth.Output{Images: []synth.Image{}}},
			check: func(t *testing.T, err error) {
				var ee *EmptyResultError
				if !errors.As(err, &ee) || ee.Scenario != LabelB {
					t.Errorf("expected EmptyResultError, got %v", err)
				}
			},
		},
		{
			name:  "nil output",
			queue: &fakeQueue{},
			check: func(t *testing.T, err error) {
				var ee *EmptyResultError
				if !errors.As(err, &ee) {
					t.Errorf("expected EmptyResultError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServiceSynthesizer(tt.queue, "model", nil)
			_, err := s.Synthesize(context.Background(), Request{Label: LabelB, ReferenceURLs: []string{"u"}})
			tt.check(t, err)
		})
	}
}

func TestParseFlow(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantNil bool
	}{
		{"absent", nil, 0, true},
		{"number", 40.0, 40, false},
		{"int", 12, 12, false},
		{"json number", json.Number("33.5"), 33.5, false},
		{"numeric string", " 18 ", 18, false},
		{"word", "lots", 0, true},
		{"bool", true, 0, true},
		{"zero", 0.0, 0, true},
		{"negative", -5.0, -5, false},
		{"negative string", "-5", -5, false},
		{"infinite string", "Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFlow(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %v", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseFlow(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFlowNegativeReachesRequest(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	reqs := o.BuildRequests([]string{"https://storage.test/lobby.png"}, "", "", "", ParseFlow("-5"))
	for _, r := range reqs {
		if r.PedestrianFlow != -5 {
			t.Errorf("scenario %s flow = %v, want -5", r.Label, r.PedestrianFlow)
		}
	}
}

func TestParseFlowDefaultsThroughOrchestrator(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	for _, raw := range []any{nil, "abc", map[string]any{}} {
		if got := o.Flow(ParseFlow(raw)); got != DefaultFlow {
			t.Errorf("flow for %v = %v, want %v", raw, got, DefaultFlow)
		}
	}
}

func TestReferences(t *testing.T) {
	if got := References("f", ""); len(got) != 1 || got[0] != "f" {
		t.Errorf("facility only: got %v", got)
	}
	if got := References("f", "c"); len(got) != 2 || got[0] != "c" || got[1] != "f" {
		t.Errorf("with crowd: got %v", got)
	}
}

func TestBuildRequests(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	refs := []string{"c", "f"}

	pair := o.BuildRequests(refs, "", "", "rapid", nil)
	if len(pair) != 2 || pair[0].Label != LabelA || pair[1].Label != LabelB {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if pair[0].Prompt != DefaultPromptA || pair[1].Prompt != "rapid" || pair[0].PedestrianFlow != DefaultFlow {
		t.Errorf("unexpected pair fields: %+v", pair)
	}

	single := o.BuildRequests(refs, "X", "custom", "", flow(50))
	if len(single) != 1 || single[0].Label != "X" || single[0].Prompt != "custom" || single[0].PedestrianFlow != 50 {
		t.Errorf("unexpected single: %+v", single)
	}
}
