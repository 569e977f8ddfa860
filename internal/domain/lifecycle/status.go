package lifecycle

// Status is the shared lifecycle of deployments and builds.
// accepted -> running -> {successful, failed, canceled, dismissed}
type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusRunning    Status = "running"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusDismissed  Status = "dismissed"
)

// Terminal statuses are monotone: once a row reaches one it never changes.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusCanceled, StatusDismissed:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusAccepted, StatusRunning, StatusSuccessful, StatusFailed, StatusCanceled, StatusDismissed:
		return true
	}
	return false
}

// FromPipelineState maps a CI pipeline state onto the lifecycle. States the
// CI invents that we do not recognize pass through unchanged so the caller
// can decide what to do with them.
func FromPipelineState(state string) Status {
	switch state {
	case "created", "waiting_for_resource", "preparing", "pending", "running":
		return StatusRunning
	case "success":
		return StatusSuccessful
	case "failed":
		return StatusFailed
	case "canceled":
		return StatusCanceled
	case "skipped":
		return StatusDismissed
	default:
		return Status(state)
	}
}
