package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewUserValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		username string
		role     Role
		wantErr  bool
	}{
		{"valid user", "a@x.com", "alice", RoleUser, false},
		{"valid admin", "b@x.com", "bob", RoleAdmin, false},
		{"missing email", "", "alice", RoleUser, true},
		{"malformed email", "not-an-email", "alice", RoleUser, true},
		{"missing username", "a@x.com", "", RoleUser, true},
		{"bogus role", "a@x.com", "alice", Role("ROOT"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser("", tt.email, tt.username, tt.role)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.ID == "" {
				t.Error("expected a generated id")
			}
		})
	}
}

func TestCreditConversionRoundTrip(t *testing.T) {
	if got := CreditsToMicros(0.25); got != 250_000 {
		t.Errorf("CreditsToMicros(0.25) = %d, want 250000", got)
	}
	if got := CreditsToMicros(-0.25); got != -250_000 {
		t.Errorf("CreditsToMicros(-0.25) = %d, want -250000", got)
	}
	if got := MicrosToCredits(750_000); got != 0.75 {
		t.Errorf("MicrosToCredits(750000) = %v, want 0.75", got)
	}
}

func TestJobTransitions(t *testing.T) {
	info := json.RawMessage(`{"session_id":"s1"}`)
	job, err := NewJob("user-1", JobKindTrajectorySession, 250_000, info)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Fatalf("new job status = %s, want PENDING", job.Status)
	}

	if !job.CanTransition(JobStatusRunning) {
		t.Error("PENDING -> RUNNING should be allowed")
	}
	if job.CanTransition(JobStatusPending) {
		t.Error("no transition may target PENDING")
	}

	job.Status = JobStatusRunning
	if !job.CanTransition(JobStatusDone) || !job.CanTransition(JobStatusFailed) {
		t.Error("RUNNING must reach both terminal states")
	}

	job.Status = JobStatusDone
	for _, next := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusFailed} {
		if job.CanTransition(next) {
			t.Errorf("DONE -> %s should be rejected", next)
		}
	}
	if !job.Status.Terminal() {
		t.Error("DONE should be terminal")
	}
}

func TestJobTimingMetrics(t *testing.T) {
	submit := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	start := submit.Add(1500 * time.Millisecond)
	end := start.Add(2 * time.Second)
	job := &Job{Submit: submit, Start: &start, End: &end, Status: JobStatusDone}

	if got := job.QueueTime(); got != 1500 {
		t.Errorf("QueueTime = %v, want 1500", got)
	}
	if got := job.ProcessTime(); got != 2000 {
		t.Errorf("ProcessTime = %v, want 2000", got)
	}
	if got := job.TotalTime(); got != 3500 {
		t.Errorf("TotalTime = %v, want 3500", got)
	}
}

func TestNewJobRejectsNegativePrice(t *testing.T) {
	if _, err := NewJob("user-1", JobKindTrajectorySession, -1, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected an error for a negative price")
	}
}
