package scenario

import (
	"context"
	"log/slog"
	"sync"

	"github.com/egress-lab/evacsim/pkg/synth"
)

// QueueClient runs a job on the synthesis service
type QueueClient interface {
	Subscribe(ctx context.Context, modelID string, input synth.Input, updates chan<- synth.QueueStatus) (*synth.Output, error)
}

// StatusEvent is a queue status update for one scenario
type StatusEvent struct {
	Scenario      string
	Status        string
	QueuePosition int
}

// ServiceSynthesizer runs scenario requests on the synthesis service and
// reduces the response to its first image.
type ServiceSynthesizer struct {
	client   QueueClient
	modelID  string
	observer func(StatusEvent)
}

// NewServiceSynthesizer creates a synthesizer for modelID. observer may be nil.
func NewServiceSynthesizer(client QueueClient, modelID string, observer func(StatusEvent)) *ServiceSynthesizer {
	return &ServiceSynthesizer{client: client, modelID: modelID, observer: observer}
}

// Synthesize blocks until the job finishes. Queue updates are logged and
// forwarded to the observer; they never affect the outcome.
func (s *ServiceSynthesizer) Synthesize(ctx context.Context, req Request) (Outcome, error) {
	slog.Info("scenario_synthesis_start",
		"scenario", req.Label,
		"reference_urls", req.ReferenceURLs,
		"pedestrian_flow", req.PedestrianFlow,
	)

	updates := make(chan synth.QueueStatus, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range updates {
			slog.Info("scenario_queue_update", "scenario", req.Label, "status", u.Status, "queue_position", u.QueuePosition)
			if s.observer != nil {
				s.observer(StatusEvent{Scenario: req.Label, Status: u.Status, QueuePosition: u.QueuePosition})
			}
		}
	}()

	out, err := s.client.Subscribe(ctx, s.modelID, synth.Input{
		Prompt:         req.Prompt,
		ImageURLs:      req.ReferenceURLs,
		PedestrianFlow: req.PedestrianFlow,
	}, updates)
	close(updates)
	wg.Wait()

	if err != nil {
		slog.Error("scenario_synthesis_failed", "scenario", req.Label, "error", err)
		return Outcome{}, &SynthesisError{Scenario: req.Label, Err: err}
	}
	if out == nil || len(out.Images) == 0 {
		slog.Error("scenario_synthesis_empty", "scenario", req.Label)
		return Outcome{}, &EmptyResultError{Scenario: req.Label}
	}

	slog.Info("scenario_synthesis_complete", "scenario", req.Label, "image_url", out.Images[0].URL, "image_count", len(out.Images))
	return Outcome{Scenario: req.Label, Image: out.Images[0]}, nil
}
