package status

import "time"

// Phase is the result of the last run for one tool
type Phase string

const (
	// PhaseFetched means the latest version was retrieved
	PhaseFetched Phase = "Fetched"

	// PhaseFailed means the fetch failed and no entry was written
	PhaseFailed Phase = "Failed"

	// PhaseRetained means the fetch failed and the previous entry was kept
	PhaseRetained Phase = "Retained"

	// PhaseSkipped means the tool's source type has no adapter
	PhaseSkipped Phase = "Skipped"
)

// ToolStatus is the fetch history of one tool across runs
type ToolStatus struct {
	// Phase is the outcome of the most recent run
	Phase Phase `json:"phase"`

	// Message carries the failure or skip reason
	Message string `json:"message,omitempty"`

	// Version is the last version recorded in the document for this tool
	Version string `json:"version,omitempty"`

	// LastAttempt is when an adapter was last invoked for this tool
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is when a version was last fetched
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// AttemptCount is the number of consecutive failed attempts
	AttemptCount int `json:"attemptCount,omitempty"`
}

// Observation is what a single run learned about one tool
type Observation struct {
	ToolID  string
	Phase   Phase
	Version string
	Message string
}

// Apply folds a run's observations into the previous status map and returns
// the new map. Tools absent from observations are dropped, so the result
// always mirrors the current registry. prev is not modified.
func Apply(prev map[string]*ToolStatus, observations []Observation, now time.Time) map[string]*ToolStatus {
	next := make(map[string]*ToolStatus, len(observations))

	for _, obs := range observations {
		st := &ToolStatus{}
		if old, ok := prev[obs.ToolID]; ok && old != nil {
			*st = *old
		}

		st.Phase = obs.Phase
		st.Message = obs.Message

		switch obs.Phase {
		case PhaseFetched:
			st.LastAttempt = timePtr(now)
			st.LastSuccess = timePtr(now)
			st.AttemptCount = 0
			st.Version = obs.Version
		case PhaseRetained:
			st.LastAttempt = timePtr(now)
			st.AttemptCount++
			if obs.Version != "" {
				st.Version = obs.Version
			}
		case PhaseFailed:
			st.LastAttempt = timePtr(now)
			st.AttemptCount++
			st.Version = ""
		case PhaseSkipped:
			st.AttemptCount = 0
			st.Version = ""
		}

		next[obs.ToolID] = st
	}

	return next
}

func timePtr(t time.Time) *time.Time {
	return &t
}
