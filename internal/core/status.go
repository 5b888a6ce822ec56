package core

// Status represents the canonical lifecycle phases for a pipeline run.
type Status int

const (
	NotStarted Status = iota
	Running
	Failed
	Aborted
	Succeeded
	PartiallySucceeded
)

// String returns the canonical lowercase token used across logs, manifests,
// and environment variables.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case Succeeded:
		return "succeeded"
	case PartiallySucceeded:
		return "partially_succeeded"
	case NotStarted:
		return "not_started"
	default:
		return "unknown"
	}
}

// IsActive checks if the status is active.
func (s Status) IsActive() bool {
	return s == Running
}

// IsSuccess checks if the status indicates a fully successful run. An
// abort-interrupted PartiallySucceeded run is not a success.
func (s Status) IsSuccess() bool {
	return s == Succeeded
}

// InstanceStatus represents the canonical lifecycle phases for a single
// stage instance.
type InstanceStatus int

const (
	// InstancePending means upstream inputs are not yet satisfied.
	InstancePending InstanceStatus = iota
	// InstanceReady means all inputs are bound and the instance awaits a slot.
	InstanceReady
	// InstanceRunning means the instance is executing.
	InstanceRunning
	// InstanceFailed means the instance failed terminally, either by its own
	// error after retries or by upstream failure propagation.
	InstanceFailed
	// InstanceAborted means the instance was stopped before completion.
	InstanceAborted
	// InstanceSucceeded means the instance ran and produced its outputs.
	InstanceSucceeded
	// InstanceCached means recorded outputs were reused without running.
	InstanceCached
)

// String returns the canonical lowercase token for the instance phase.
func (s InstanceStatus) String() string {
	switch s {
	case InstanceReady:
		return "ready"
	case InstanceRunning:
		return "running"
	case InstanceFailed:
		return "failed"
	case InstanceAborted:
		return "aborted"
	case InstanceSucceeded:
		return "succeeded"
	case InstanceCached:
		return "cached"
	case InstancePending:
		return "pending"
	default:
		return "unknown"
	}
}

// IsTerminal checks if the instance has reached a final phase.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceFailed, InstanceAborted, InstanceSucceeded, InstanceCached:
		return true
	default:
		return false
	}
}

// IsSuccess checks if the instance satisfied its downstream consumers.
// Cached instances count the same as succeeded ones.
func (s InstanceStatus) IsSuccess() bool {
	return s == InstanceSucceeded || s == InstanceCached
}
