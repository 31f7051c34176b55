// Package synth is a client for a queue-based image synthesis service: a job is
// submitted, its status polled until it completes, then the result fetched.
package synth

// Input is the synthesis payload. Image order is meaningful to the model.
type Input struct {
	Prompt         string   `json:"prompt"`
	ImageURLs      []string `json:"image_urls"`
	PedestrianFlow float64  `json:"pedestrian_flow"`
}

// Image is one generated image
type Image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// Output is the completed job payload
type Output struct {
	Images      []Image `json:"images"`
	Seed        *int64  `json:"seed,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Queue states reported by the service
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// LogEntry is a worker log line attached to a status update
type LogEntry struct {
	Message   string `json:"message"`
	Level     string `json:"level,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// QueueStatus is an intermediate notification about a running job
type QueueStatus struct {
	RequestID     string     `json:"request_id,omitempty"`
	Status        string     `json:"status"`
	QueuePosition int        `json:"queue_position,omitempty"`
	Logs          []LogEntry `json:"logs,omitempty"`
	ResponseURL   string     `json:"response_url,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}
