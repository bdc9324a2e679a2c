package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/sweeney/denoise-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"value": func(s status.SensorStatus) string {
		if s.Value == nil {
			return "unavailable"
		}
		out := strconv.FormatFloat(*s.Value, 'f', -1, 64)
		if s.Unit != "" {
			out += " " + s.Unit
		}
		return out
	},
	"emittedAt": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Denoise Sensor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.available { color: green; font-weight: bold; }
.unavailable { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>Denoise Sensor</h1>

<table>
<tr><th>Sensor</th><th>Source</th><th>Value</th><th>Last emission</th><th>Emitted</th><th>Suppressed</th></tr>
{{range .Sensors}}
<tr>
<td>{{.Name}}</td>
<td class="muted">{{.EntityID}}</td>
{{if .Value}}<td class="available">{{value .}}</td>{{else}}<td class="unavailable">unavailable</td>{{end}}
<td class="muted">{{emittedAt .LastEmission}}</td>
<td>{{.Counts.Emitted}}</td>
<td>{{.Counts.Suppressed}}</td>
</tr>
{{end}}
</table>

<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>MQTT</th>
{{if .MQTTConnected}}<td class="connected">connected ({{.Config.Broker}})</td>
{{else}}<td class="disconnected">disconnected ({{.Config.Broker}})</td>{{end}}
</tr>
<tr><th>Source prefix</th><td>{{.Config.SourcePrefix}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z07:00"}}</td></tr>
</table>

<p class="muted"><a href="/index.json">index.json</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render template: %v", err)
	}
}
