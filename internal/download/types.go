package download

import "media-cache/internal/metrics"

// State is the process-wide bulk-download state.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// stateGaugeValue maps states onto the download state gauge.
func stateGaugeValue(s State) float64 {
	switch s {
	case StateDownloading:
		return 1
	case StateCompleted:
		return 2
	case StateCancelled:
		return 3
	case StateFailed:
		return 4
	default:
		return 0
	}
}

// Progress counts completed items within the active batch.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Fraction returns completed/total, or 0 for an empty batch.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Status is a snapshot of the manager's state machine.
type Status struct {
	State    State    `json:"state"`
	Progress Progress `json:"progress"`
	Reason   string   `json:"reason,omitempty"`
}

func publishState(s State, p Progress) {
	metrics.DownloadState.Set(stateGaugeValue(s))
	metrics.DownloadBatchProgress.Set(p.Fraction())
}
