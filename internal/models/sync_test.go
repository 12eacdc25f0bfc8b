package models

import (
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, true},
		{StatusFailure, true},
		{StatusInterrupted, true},
		{"", false},
		{"SUCCESS", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusKey(t *testing.T) {
	s := SyncStatus{Hostname: "lab-pc-01", Timestamp: "20240101090500"}
	if got := s.Key(); got != "sync:20240101090500:lab-pc-01" {
		t.Errorf("Key() = %q", got)
	}
}

func TestTimestampLexicalOrderMatchesTime(t *testing.T) {
	base := time.Date(2024, 1, 9, 23, 59, 59, 0, time.UTC)
	prev := FormatTimestamp(base)
	for i := 1; i < 200; i++ {
		next := FormatTimestamp(base.Add(time.Duration(i*37) * time.Minute))
		if !(prev < next) {
			t.Fatalf("timestamps out of lexical order: %s >= %s", prev, next)
		}
		prev = next
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	got, err := ParseTimestamp("20240101090500", loc)
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	want := time.Date(2024, 1, 1, 9, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("ParseTimestamp = %v, want %v", got, want)
	}

	for _, bad := range []string{"", "2024010109050", "202401010905000", "2024-01-01T09:"} {
		if _, err := ParseTimestamp(bad, loc); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr bool
	}{
		{"valid", SubmitRequest{Hostname: "a", Status: StatusSuccess}, false},
		{"interrupted", SubmitRequest{Hostname: "a", Status: StatusInterrupted, ExitCode: -1}, false},
		{"missing hostname", SubmitRequest{Status: StatusFailure}, true},
		{"bad status", SubmitRequest{Hostname: "a", Status: "ok"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitRequestToStatus(t *testing.T) {
	req := SubmitRequest{Hostname: "a", Status: StatusFailure, ExitCode: 2, Logs: "boom"}
	s := req.ToStatus("20240101090500")
	if s.Timestamp != "20240101090500" || s.Hostname != "a" || s.ExitCode != 2 || s.Logs != "boom" {
		t.Errorf("unexpected status: %+v", s)
	}
	if s.CheckinLogs == nil {
		t.Error("CheckinLogs should be an empty slice, not nil")
	}
}
