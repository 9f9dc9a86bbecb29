package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"
)

// Summary contains aggregated counts about one run.
type Summary struct {
	RunID      string `json:"run_id"`
	SearchName string `json:"search_name"`

	Pairs int `json:"pairs"`
	Pages int `json:"pages"`
	Links int `json:"links"`

	Possible int `json:"possible"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`

	NewMatches    int `json:"new_matches"`
	TotalPossible int `json:"total_possible"`
	TotalRejected int `json:"total_rejected"`

	Notified  bool `json:"notified"`
	Persisted bool `json:"persisted"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

var summaryTmpl = template.Must(template.New("summary").Parse(`rentwatch run {{.RunID}}{{if .SearchName}} ({{.SearchName}}){{end}}
------------------
Time:        {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:    {{.Duration}}
Searches:    {{.Pairs}} postcode/distance pairs
Pages:       {{.Pages}}
Properties:  {{.Links}}

Classified:
  possible: {{.Possible}}
  rejected: {{.Rejected}}
  skipped:  {{.Skipped}}

New matches: {{.NewMatches}}
Known:       {{.TotalPossible}} possible, {{.TotalRejected}} rejected
Notified:    {{.Notified}}
Persisted:   {{.Persisted}}
`))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := summaryTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

// Match is a property newly classified as possible, with the term that
// matched its page.
type Match struct {
	Address string
	Term    string
}

// Notification is the content of a new-match message.
type Notification struct {
	SearchName  string
	RunID       string
	GeneratedAt time.Time
	New         []Match
	// Previous lists matches already known before this run that are still
	// possible.
	Previous []string
}

// Subject returns the message subject line.
func Subject(n Notification) string {
	name := n.SearchName
	if name == "" {
		name = "rentwatch"
	}
	if len(n.New) == 1 {
		return fmt.Sprintf("%s: 1 new property", name)
	}
	return fmt.Sprintf("%s: %d new properties", name, len(n.New))
}

var notificationText = template.Must(template.New("notificationText").Parse(`New properties matching {{if .SearchName}}"{{.SearchName}}"{{else}}your search{{end}}:
{{range .New}}
  {{.Address}}
    matched: {{.Term}}
{{- end}}
{{if .Previous}}
Previously found:
{{range .Previous}}
  {{.}}
{{- end}}
{{end}}
-- 
rentwatch run {{.RunID}} at {{.GeneratedAt.Format "2006-01-02 15:04"}}
`))

var notificationHTML = htmltemplate.Must(htmltemplate.New("notificationHTML").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .SearchName}}{{.SearchName}}{{else}}rentwatch{{end}}</title>
<style>
  body { font-family: sans-serif; color: #333; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 6px 10px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
  .footer { margin-top: 20px; color: #888; font-size: 12px; }
</style>
</head>
<body>
  <h2>New properties{{if .SearchName}} for {{.SearchName}}{{end}}</h2>
  <table>
    <tr><th>Property</th><th>Matched</th></tr>
    {{- range .New}}
    <tr><td><a href="{{.Address}}">{{.Address}}</a></td><td>{{.Term}}</td></tr>
    {{- end}}
  </table>
  {{- if .Previous}}
  <h3>Previously found</h3>
  <ul>
    {{- range .Previous}}
    <li><a href="{{.}}">{{.}}</a></li>
    {{- end}}
  </ul>
  {{- end}}
  <p class="footer">rentwatch run {{.RunID}} at {{.GeneratedAt.Format "2006-01-02 15:04"}}</p>
</body>
</html>
`))

// WriteNotificationText renders the plain-text message body.
func WriteNotificationText(w io.Writer, n Notification) error {
	if err := notificationText.Execute(w, n); err != nil {
		return fmt.Errorf("render notification text: %w", err)
	}
	return nil
}

// WriteNotificationHTML renders the HTML message body. Addresses and terms
// are escaped.
func WriteNotificationHTML(w io.Writer, n Notification) error {
	if err := notificationHTML.Execute(w, n); err != nil {
		return fmt.Errorf("render notification html: %w", err)
	}
	return nil
}
