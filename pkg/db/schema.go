package db

// Schema defines the SQLite run ledger. It records the status of each
// orchestration but never the generated images.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL CHECK(mode IN ('pair', 'single')),
    scenario TEXT,
    facility_image TEXT,
    crowd_image TEXT,
    status TEXT NOT NULL CHECK(status IN ('running', 'succeeded', 'failed')),
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Mode constants
const (
	ModePair   = "pair"
	ModeSingle = "single"
)

// Status constants
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run represents one orchestration
type Run struct {
	ID            string
	Mode          string
	Scenario      string
	FacilityImage string
	CrowdImage    string
	Status        string
	ErrorMessage  string
	CreatedAt     string
	UpdatedAt     string
}
