package models

import "fmt"

// SubmitRequest is the body a node POSTs to /puppet-sync. The collector
// assigns the timestamp on receipt.
type SubmitRequest struct {
	Hostname    string   `json:"hostname"`
	Status      Status   `json:"status"`
	ExitCode    int      `json:"exit_code"`
	Logs        string   `json:"logs"`
	CheckinLogs []string `json:"checkin_logs"`
}

// Validate checks the required fields of a submission.
func (r *SubmitRequest) Validate() error {
	if r.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q (must be success, failure or interrupted)", r.Status)
	}
	return nil
}

// ToStatus converts the submission into a stored status with the given timestamp.
func (r *SubmitRequest) ToStatus(timestamp string) SyncStatus {
	checkins := r.CheckinLogs
	if checkins == nil {
		checkins = []string{}
	}
	return SyncStatus{
		Hostname:    r.Hostname,
		Status:      r.Status,
		ExitCode:    r.ExitCode,
		Timestamp:   timestamp,
		Logs:        r.Logs,
		CheckinLogs: checkins,
	}
}
