package storage

import (
	"strings"
	"testing"
)

func TestVideoKeyRoundTrip(t *testing.T) {
	key := VideoKey(42, 7, "morning serve.mp4")

	if !strings.HasPrefix(key, "videos/coach_42/student_7/") {
		t.Fatalf("Unexpected key layout: %s", key)
	}
	if !strings.HasSuffix(key, ".mp4") {
		t.Errorf("Extension not preserved: %s", key)
	}

	coachID, err := CoachIDFromKey(key)
	if err != nil {
		t.Fatalf("CoachIDFromKey failed: %v", err)
	}
	if coachID != 42 {
		t.Errorf("Expected coach id 42, got %d", coachID)
	}
}

func TestCoachIDFromKeyRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"videos",
		"videos/coach_1",
		"documents/coach_1/student_2/file.mp4",
		"videos/student_2/coach_1/file.mp4",
		"videos/coach_abc/student_2/file.mp4",
	}

	for _, key := range malformed {
		if _, err := CoachIDFromKey(key); err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

func TestVideoContentType(t *testing.T) {
	cases := map[string]string{
		"rally.mp4":    "video/mp4",
		"rally.MOV":    "video/quicktime",
		"rally.webm":   "video/webm",
		"rally.mkv":    "video/x-matroska",
		"rally.txt":    "application/octet-stream",
		"no-extension": "application/octet-stream",
	}

	for filename, want := range cases {
		if got := VideoContentType(filename); got != want {
			t.Errorf("VideoContentType(%q) = %q, want %q", filename, got, want)
		}
	}
}
