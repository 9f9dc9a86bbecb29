package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testSummary() Summary {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return Summary{
		RunID:         "run-1",
		SearchName:    "Bern",
		Pairs:         2,
		Pages:         3,
		Links:         47,
		Possible:      2,
		Rejected:      40,
		Skipped:       5,
		NewMatches:    1,
		TotalPossible: 3,
		TotalRejected: 90,
		Persisted:     true,
		StartTime:     start,
		EndTime:       start.Add(95 * time.Second),
		Duration:      95 * time.Second,
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"rentwatch run run-1 (Bern)",
		"Duration:    1m35s",
		"Properties:  47",
		"rejected: 40",
		"New matches: 1",
		"Known:       3 possible, 90 rejected",
		"Persisted:   true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["links"] != float64(47) {
		t.Errorf("expected links=47, got %v", decoded["links"])
	}
	if decoded["run_id"] != "run-1" {
		t.Errorf("expected run_id, got %v", decoded["run_id"])
	}
}

func testNotification() Notification {
	return Notification{
		SearchName:  "Bern",
		RunID:       "run-1",
		GeneratedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		New: []Match{
			{Address: "https://www.homegate.ch/mieten/3001", Term: "Balkon"},
		},
		Previous: []string{"https://www.homegate.ch/mieten/2001"},
	}
}

func TestSubject(t *testing.T) {
	n := testNotification()
	if got := Subject(n); got != "Bern: 1 new property" {
		t.Errorf("unexpected subject %q", got)
	}

	n.New = append(n.New, Match{Address: "x", Term: "y"})
	n.SearchName = ""
	if got := Subject(n); got != "rentwatch: 2 new properties" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestWriteNotificationText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNotificationText(&buf, testNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`New properties matching "Bern"`,
		"https://www.homegate.ch/mieten/3001",
		"matched: Balkon",
		"Previously found:",
		"https://www.homegate.ch/mieten/2001",
		"rentwatch run run-1 at 2026-03-01 08:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteNotificationText_NoPrevious(t *testing.T) {
	n := testNotification()
	n.Previous = nil

	var buf bytes.Buffer
	if err := WriteNotificationText(&buf, n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "Previously found") {
		t.Errorf("did not expect a previous section:\n%s", buf.String())
	}
}

func TestWriteNotificationHTML(t *testing.T) {
	n := testNotification()
	n.New[0].Term = "<Garten>"

	var buf bytes.Buffer
	if err := WriteNotificationHTML(&buf, n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("expected HTML output to contain doctype")
	}
	if !strings.Contains(out, `<a href="https://www.homegate.ch/mieten/3001">`) {
		t.Errorf("expected link to new property, got:\n%s", out)
	}
	if !strings.Contains(out, "&lt;Garten&gt;") {
		t.Errorf("expected term to be escaped, got:\n%s", out)
	}
	if !strings.Contains(out, "Previously found") {
		t.Error("expected previous section")
	}
}
