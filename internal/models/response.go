package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Entries   int    `json:"entries"`
}

// LogsResponse represents the reports recorded for one host in one interval
type LogsResponse struct {
	Time     string       `json:"time"`
	Hostname string       `json:"hostname"`
	Logs     []SyncStatus `json:"logs"`
}

// CheckinListResponse represents list check-ins response
type CheckinListResponse struct {
	Checkins []CheckinLogEntry `json:"checkins"`
	Count    int               `json:"count"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
