package compute

import "time"

// Backend job states.
const (
	StateQueued    = "job-queued"
	StateStarted   = "job-started"
	StateCompleted = "job-completed"
	StateFailed    = "job-failed"
	StateRevoked   = "job-revoked"
	StateOffline   = "job-offline"
	StateDeduped   = "job-deduped"
)

type SubmitRequest struct {
	Type      string
	Queue     string
	Params    map[string]interface{}
	Tag       string
	Dedup     *bool
	TimeLimit int // seconds; zero keeps the backend's soft limit
}

type JobHandle struct {
	ID string `json:"id"`
}

type JobInfo struct {
	ID        string                   `json:"id"`
	Type      string                   `json:"type"`
	Status    string                   `json:"status"`
	Queue     string                   `json:"queue,omitempty"`
	Tags      []string                 `json:"tags,omitempty"`
	TimeStart *time.Time               `json:"time_start,omitempty"`
	TimeEnd   *time.Time               `json:"time_end,omitempty"`
	Metrics   map[string]interface{}   `json:"metrics,omitempty"`
	Products  []map[string]interface{} `json:"products,omitempty"`
	Traceback string                   `json:"traceback,omitempty"`
}

// Duration returns the reported wall time, or zero when the backend has not
// reported both endpoints yet.
func (j *JobInfo) Duration() time.Duration {
	if j == nil || j.TimeStart == nil || j.TimeEnd == nil {
		return 0
	}
	return j.TimeEnd.Sub(*j.TimeStart)
}

type ParamDef struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Default     interface{} `json:"default,omitempty"`
	Destination string      `json:"destination,omitempty"`
}

// HasDefault distinguishes "no default" from an explicit null/zero default.
func (p ParamDef) HasDefault() bool { return p.Default != nil }

type JobSpec struct {
	Type              string     `json:"type"`
	Params            []ParamDef `json:"params"`
	RecommendedQueues []string   `json:"recommended_queues,omitempty"`
	SoftTimeLimit     int        `json:"soft_time_limit,omitempty"`
	AllowPassthrough  bool       `json:"allow_passthrough,omitempty"`
}

type PurgeResult struct {
	PurgeID string `json:"purge_id"`
	State   string `json:"state,omitempty"`
}

type ListFilter struct {
	JobType   string
	Tag       string
	Queue     string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
	Username  string
	Limit     int
	Offset    int
	Detailed  bool
}
