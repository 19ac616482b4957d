package export

import (
	"bytes"
	"html/template"
)

var sessionTemplate = template.Must(template.New("session").Parse(sessionNoteTemplate))

// RenderSessionHTML renders the session note template with provided data.
func RenderSessionHTML(note SessionNote) (string, error) {
	var buf bytes.Buffer
	if err := sessionTemplate.Execute(&buf, note); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const sessionNoteTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Session Note — {{.ClientName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { margin: 1.5rem 0; }
    .section h2 { font-size: 1.05em; border-bottom: 1px solid #ddd; padding-bottom: 0.25rem; }
    .risk { background: #fff3cd; padding: 1rem; border-left: 3px solid #cc8800; }
    ul { margin: 0.5rem 0; }
  </style>
</head>
<body>
  <h1>Session Note</h1>
  <div class="meta">
    {{.ClientName}} | {{.SessionDate}}{{if .SessionTime}} {{.SessionTime}}{{end}} |
    {{.DurationMinutes}} min | {{.Status}}{{if .TherapistName}} | {{.TherapistName}}{{end}}
  </div>

  {{if .Summary}}<div class="section"><h2>Summary</h2><p>{{.Summary}}</p></div>{{end}}
  {{if .Notes}}<div class="section"><h2>Notes</h2><p>{{.Notes}}</p></div>{{end}}
  {{if .OverallProgress}}<div class="section"><h2>Progress</h2><p>{{.OverallProgress}}</p></div>{{end}}
  {{if .Insights}}<div class="section"><h2>Client Insights</h2><p>{{.Insights}}</p></div>{{end}}
  {{if .Interventions}}
  <div class="section"><h2>Interventions</h2>
    <ul>{{range .Interventions}}<li>{{.}}</li>{{end}}</ul>
  </div>
  {{end}}
  {{if .Homework}}<div class="section"><h2>Homework</h2><p>{{.Homework}}</p></div>{{end}}
  {{if .Observations}}<div class="section"><h2>Clinical Observations</h2><p>{{.Observations}}</p></div>{{end}}
  {{if .RiskAssessment}}<div class="section risk"><h2>Risk Assessment</h2><p>{{.RiskAssessment}}</p></div>{{end}}
</body>
</html>`
