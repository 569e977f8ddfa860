package jobs

import "time"

// JobSubmission records that a principal launched a backend job. It has no
// lifecycle of its own; the backend owns job state. ProcessID is nullable
// because legacy jobs predate the catalog.
type JobSubmission struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BackendJobID string    `gorm:"column:backend_job_id;not null;uniqueIndex" json:"jobID"`
	SubmitterID  int64     `gorm:"column:submitter_id;not null;index" json:"submitterID"`
	ProcessID    *int64    `gorm:"column:process_id;index" json:"processID,omitempty"`
	SubmittedAt  time.Time `gorm:"column:submitted_at;not null;index" json:"submittedAt"`
}

func (JobSubmission) TableName() string { return "job_submission" }
