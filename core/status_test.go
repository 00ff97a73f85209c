package core

import (
	"errors"
	"testing"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to metadata", StatusQueued, StatusMetadata, true},
		{"metadata to parsed", StatusMetadata, StatusParsed, true},
		{"parsed to extracted", StatusParsed, StatusExtracted, true},
		{"extracted to ready", StatusExtracted, StatusReady, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"extracted to failed", StatusExtracted, StatusFailed, true},
		{"skip a stage", StatusQueued, StatusParsed, false},
		{"backwards", StatusParsed, StatusMetadata, false},
		{"ready is terminal", StatusReady, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusQueued, false},
		{"self transition", StatusMetadata, StatusMetadata, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusTransition_Illegal(t *testing.T) {
	_, err := StatusReady.Transition(StatusFailed)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Transition() error = %v, want ErrIllegalTransition", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusMetadata, StatusParsed, StatusExtracted} {
		if s.Terminal() {
			t.Errorf("%v.Terminal() = true, want false", s)
		}
	}
	for _, s := range []Status{StatusReady, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%v.Terminal() = false, want true", s)
		}
	}
}

func TestParseStatus_RoundTrip(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusMetadata, StatusParsed, StatusExtracted, StatusReady, StatusFailed} {
		parsed, ok := ParseStatus(s.String())
		if !ok {
			t.Fatalf("ParseStatus(%q) not recognized", s.String())
		}
		if parsed != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), parsed, s)
		}
	}

	if _, ok := ParseStatus("bogus"); ok {
		t.Error("ParseStatus(bogus) expected failure, got ok")
	}
}

func TestStageChain(t *testing.T) {
	want := []Stage{StageMetadata, StageContent, StageExtraction, StageEmbedding}

	got := []Stage{StageMetadata}
	for {
		next, ok := got[len(got)-1].Next()
		if !ok {
			break
		}
		got = append(got, next)
	}

	if len(got) != len(want) {
		t.Fatalf("stage chain length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage chain[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStageCompleted(t *testing.T) {
	tests := []struct {
		stage Stage
		want  Status
	}{
		{StageMetadata, StatusMetadata},
		{StageContent, StatusParsed},
		{StageExtraction, StatusExtracted},
		{StageEmbedding, StatusReady},
	}

	for _, tt := range tests {
		if got := tt.stage.Completed(); got != tt.want {
			t.Errorf("%v.Completed() = %v, want %v", tt.stage, got, tt.want)
		}
	}
}
