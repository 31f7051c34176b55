// Package httpapi exposes scenario generation and the local asset
// collections over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/db"
	"github.com/egress-lab/evacsim/pkg/scenario"
	"github.com/google/uuid"
)

// Generator runs orchestrations
type Generator interface {
	GenerateBoth(ctx context.Context, in scenario.PairRequest) (*scenario.Result, error)
	GenerateOne(ctx context.Context, in scenario.SingleRequest) (*scenario.Result, error)
}

// RunLedger records the status of each orchestration
type RunLedger interface {
	Create(ctx context.Context, run *db.Run) error
	Finish(ctx context.Context, id, status, facility, crowd, errorMessage string) error
}

// App holds the handler dependencies
type App struct {
	gen    Generator
	assets *assets.Locator
	runs   RunLedger
}

// NewApp creates the handler container. runs may be nil.
func NewApp(gen Generator, locator *assets.Locator, runs RunLedger) *App {
	return &App{gen: gen, assets: locator, runs: runs}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, message, details string) {
	a.json(w, code, errorBody{Error: message, Details: details})
}

// MethodNotAllowed rejects verbs a route does not serve
func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
}

// startRun records a running orchestration and returns its id. Ledger
// failures are logged and never fail the request.
func (a *App) startRun(ctx context.Context, mode, label, facility, crowd string) string {
	if a.runs == nil {
		return ""
	}
	run := &db.Run{
		ID:            uuid.NewString(),
		Mode:          mode,
		Scenario:      label,
		FacilityImage: facility,
		CrowdImage:    crowd,
		Status:        db.StatusRunning,
	}
	if err := a.runs.Create(ctx, run); err != nil {
		slog.Warn("run_ledger_create_failed", "mode", mode, "error", err)
		return ""
	}
	return run.ID
}

// finishRun records the outcome. Failed runs keep the requested asset names.
func (a *App) finishRun(ctx context.Context, id, facility, crowd string, res *scenario.Result, runErr error) {
	if a.runs == nil || id == "" {
		return
	}
	var err error
	if runErr != nil {
		err = a.runs.Finish(ctx, id, db.StatusFailed, facility, crowd, runErr.Error())
	} else {
		err = a.runs.Finish(ctx, id, db.StatusSucceeded, res.FacilityImage, res.CrowdImage, "")
	}
	if err != nil {
		slog.Warn("run_ledger_update_failed", "run_id", id, "error", err)
	}
}

// rootCause returns the innermost wrapped error
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
