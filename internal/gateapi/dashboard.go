package gateapi

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// dashboardTemplate renders the system status and the ten most recent
// proposals, the minimal operator-visible surface spec §7 requires
// beyond the JSON API.
var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format(time.RFC3339)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Gatekeeper</title>
  <style>
    body { font-family: monospace; margin: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
    .LOCKED { color: #b00; font-weight: bold; }
    .NORMAL { color: #060; font-weight: bold; }
    .APPROVED { color: #060; }
    .REJECTED { color: #b00; }
    .APPROVED_BUT_EXECUTION_FAILED { color: #a60; }
  </style>
</head>
<body>
  <h1>Gatekeeper</h1>
  <p>System: <span class="{{.Lock.Status}}">{{.Lock.Status}}</span>{{if .Lock.Reason}} ({{.Lock.Reason}}){{end}}</p>
  <p>Equity: {{printf "%.2f" .CurrentEquity}} (start of day {{printf "%.2f" .StartOfDayEquity}}), day P&L {{printf "%.2f" .DayPnL}} ({{printf "%.2f" .DayPnLPercent}}%)</p>
  <p>Last heartbeat: {{formatTime .LastHeartbeatAt}}</p>
  <h2>Recent proposals</h2>
  <table>
    <tr><th>ID</th><th>Symbol</th><th>Strategy</th><th>Side</th><th>Status</th><th>Reason</th></tr>
    {{range .RecentProposals}}
    <tr>
      <td>{{.ID}}</td><td>{{.Symbol}}</td><td>{{.Strategy}}</td><td>{{.Side}}</td>
      <td class="{{.Status}}">{{.Status}}</td><td>{{.RejectionReason}}</td>
    </tr>
    {{else}}
    <tr><td colspan="6">no proposals yet</td></tr>
    {{end}}
  </table>
</body>
</html>
`))

func (s *Server) handleDashboard(c *gin.Context) {
	view, err := s.gate.Status(c.Request.Context())
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = dashboardTemplate.Execute(c.Writer, view)
}
