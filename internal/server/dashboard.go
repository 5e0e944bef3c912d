package server

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/schmug/scubascore/internal/history"
	"github.com/schmug/scubascore/internal/report"
)

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>scubascore</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 840px; color: #1a1a2e; }
h1 { border-bottom: 2px solid #16213e; padding-bottom: .4rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #d0d0e0; padding: .5rem .8rem; text-align: left; }
th { background: #16213e; color: #fff; }
.empty { color: #666; font-style: italic; }
a { color: #16213e; }
</style>
</head>
<body>
<h1>SCuBA Score History</h1>
{{if .Entries}}
<table>
<tr><th>#</th><th>Timestamp</th><th>Overall</th><th>Status</th><th>Services</th></tr>
{{range .Entries}}
<tr>
<td><a href="/api/scores/{{.ID}}">{{.ID}}</a></td>
<td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td>
<td>{{scoreOf .OverallScore}}</td>
<td>{{statusOf .OverallScore}}</td>
<td>{{len .ServiceScores}}</td>
</tr>
{{end}}
</table>
{{else}}
<p class="empty">No scores recorded yet. POST a ScubaGoggles results file to /api/scores.</p>
{{end}}
</body>
</html>
`

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"scoreOf": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return template.HTMLEscapeString(formatScore(*v))
	},
	"statusOf": report.StatusBand,
}).Parse(dashboardTemplate))

type dashboardData struct {
	Entries []history.Entry
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("dashboard history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Newest first reads better on a landing page.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, dashboardData{Entries: entries}); err != nil {
		s.logger.Error("rendering dashboard", "error", err)
	}
}
