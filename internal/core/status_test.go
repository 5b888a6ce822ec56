package core

import (
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{NotStarted, "not_started"},
		{Running, "running"},
		{Failed, "failed"},
		{Aborted, "aborted"},
		{Succeeded, "succeeded"},
		{PartiallySucceeded, "partially_succeeded"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.status.String() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.status.String())
			}
		})
	}
}

func TestStatusIsSuccess(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{Succeeded, true},
		{PartiallySucceeded, false},
		{Failed, false},
		{Aborted, false},
		{Running, false},
		{NotStarted, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if tt.status.IsSuccess() != tt.expected {
				t.Errorf("Expected IsSuccess() = %v for %s", tt.expected, tt.status)
			}
		})
	}
}

func TestInstanceStatusString(t *testing.T) {
	tests := []struct {
		status   InstanceStatus
		expected string
	}{
		{InstancePending, "pending"},
		{InstanceReady, "ready"},
		{InstanceRunning, "running"},
		{InstanceFailed, "failed"},
		{InstanceAborted, "aborted"},
		{InstanceSucceeded, "succeeded"},
		{InstanceCached, "cached"},
		{InstanceStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.status.String() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.status.String())
			}
		})
	}
}

func TestInstanceStatusIsTerminal(t *testing.T) {
	terminal := []InstanceStatus{InstanceFailed, InstanceAborted, InstanceSucceeded, InstanceCached}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	active := []InstanceStatus{InstancePending, InstanceReady, InstanceRunning}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("Expected %s to not be terminal", s)
		}
	}
}

func TestInstanceStatusIsSuccess(t *testing.T) {
	if !InstanceSucceeded.IsSuccess() {
		t.Error("Expected succeeded to satisfy consumers")
	}
	if !InstanceCached.IsSuccess() {
		t.Error("Expected cached to satisfy consumers")
	}
	if InstanceFailed.IsSuccess() {
		t.Error("Expected failed to not satisfy consumers")
	}
	if InstanceRunning.IsSuccess() {
		t.Error("Expected running to not satisfy consumers")
	}
}
