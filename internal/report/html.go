package report

import (
	"html/template"
	"os"
	"strings"

	"github.com/schmug/scubascore/internal/model"
)

// htmlTemplate renders the standalone HTML report. Score banding mirrors
// StatusBand: excellent >= 90, good >= 80, fair >= 70, poor >= 60,
// critical below.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>SCuBA Security Score Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; color: #1a1a2e; }
h1 { border-bottom: 2px solid #16213e; padding-bottom: .4rem; }
.overall { font-size: 2.4rem; font-weight: 700; margin: 1rem 0; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #d0d0e0; padding: .5rem .8rem; text-align: left; }
th { background: #16213e; color: #fff; }
.excellent { color: #1b7f3a; font-weight: 600; }
.good { color: #4a9b2e; font-weight: 600; }
.fair { color: #c98a00; font-weight: 600; }
.poor { color: #d4561a; font-weight: 600; }
.critical { color: #b3261e; font-weight: 600; }
.meta { color: #666; font-size: .85rem; }
.comp { font-style: italic; color: #555; }
</style>
</head>
<body>
<h1>SCuBA Security Score Report</h1>
<p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04 UTC"}}</p>
<div class="overall {{band .OverallScore}}">{{score .OverallScore}}</div>

<h2>Service Scores</h2>
<table>
<tr><th>Service</th><th>Score</th><th>Status</th><th>Passed</th><th>Failed</th><th>Evaluated Weight</th></tr>
{{range .Services}}
<tr>
<td>{{.Name}}</td>
<td class="{{band .Score.Score}}">{{score .Score.Score}}</td>
<td>{{status .Score.Score}}</td>
<td>{{.Score.PassedCount}}</td>
<td>{{.Score.FailedCount}}</td>
<td>{{weight .Score.EvaluatedWeight}}</td>
</tr>
{{end}}
</table>

{{if .TopFailures}}
<h2>Top Failures</h2>
<table>
<tr><th>Service</th><th>Rule</th><th>Weight</th><th>Effective Weight</th><th>Compensated</th></tr>
{{range .TopFailures}}
<tr>
<td>{{.Service}}</td>
<td>{{.Rule}}</td>
<td>{{weight .Weight}}</td>
<td>{{weight .EffectiveWeight}}</td>
<td>{{if .IsCompensated}}<span class="comp">yes</span>{{else}}no{{end}}</td>
</tr>
{{end}}
</table>
{{end}}

<h2>Failed Rules</h2>
{{range .Services}}{{if .Score.Failed}}
<h3>{{.Name}}</h3>
<ul>
{{range .Score.Failed}}
<li>{{if .DocumentationURL}}<a href="{{.DocumentationURL}}">{{.RuleID}}</a>{{else}}{{.RuleID}}{{end}}
 (weight: {{weight .Weight}}){{if .Compensated}} <span class="comp">compensating control applied</span>{{end}}
{{if .Requirement}}<br><small>{{.Requirement}}</small>{{end}}</li>
{{end}}
</ul>
{{end}}{{end}}

<p class="meta">Data quality: {{.DataQuality.UnknownOrError}} unknown/error of {{.DataQuality.TotalEntries}} entries seen.</p>
</body>
</html>
`

type htmlService struct {
	Name  string
	Score model.ServiceScore
}

type htmlData struct {
	model.ScoreResult
	Services []htmlService
}

var htmlFuncs = template.FuncMap{
	"score": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return trimFloat(*v) + "%"
	},
	"weight": trimFloat,
	"status": StatusBand,
	"band": func(v *float64) string {
		return strings.ToLower(StatusBand(v))
	},
}

var htmlTmpl = template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate))

func writeHTML(result model.ScoreResult, prefix string) (string, error) {
	path := prefix + "_report.html"

	data := htmlData{ScoreResult: result}
	for _, name := range sortedServices(result) {
		data.Services = append(data.Services, htmlService{Name: name, Score: result.PerService[name]})
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := htmlTmpl.Execute(f, data); err != nil {
		return "", err
	}
	return path, f.Close()
}
