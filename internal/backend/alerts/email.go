package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const alertTimeLayout = "Monday, January 2, 2006 at 3:04 PM MST"

// AlertEmail данные письма о пропавшем мониторе
type AlertEmail struct {
	AppName     string
	MonitorName string
	LastPing    time.Time
	DownSince   time.Time
	// DashboardURL ссылка на монитор, пустая если адрес приложения не задан
	DashboardURL string
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0; padding:0; background-color:#0c121c; color:#e5e7eb; font-family:'Segoe UI', Arial, Helvetica, sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#0c121c; padding:32px 12px;">
    <tr>
      <td align="center">
        <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:620px; background-color:#111827; border:1px solid #1f2937; border-radius:16px;">
          <tr>
            <td style="padding:28px 28px 18px 28px; border-bottom:1px solid #1f2937;">
              <div style="font-size:18px; font-weight:700;">{{.AppName}}</div>
              <div style="color:#9ca3af; font-size:12px; margin-top:4px;">Dead man's switch monitor</div>
            </td>
          </tr>
          <tr>
            <td style="padding:28px;">
              <div style="font-size:22px; font-weight:700; margin-bottom:10px; color:#ef4444;">MONITOR DOWN</div>
              <div style="color:#9ca3af; font-size:13px; margin-bottom:18px;">
                <strong>{{.MonitorName}}</strong> stopped sending heartbeats and missed its deadline.
              </div>
              <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#0f172a; border:1px solid #1f2937; border-radius:12px; padding:16px;">
                <tr>
                  <td style="color:#9ca3af; font-size:12px;">Monitor</td>
                  <td style="text-align:right; font-size:13px; font-weight:600;">{{.MonitorName}}</td>
                </tr>
                <tr>
                  <td style="color:#9ca3af; font-size:12px;">Last heartbeat</td>
                  <td style="text-align:right; font-size:13px;">{{.LastPing}}</td>
                </tr>
                <tr>
                  <td style="color:#9ca3af; font-size:12px;">Down since</td>
                  <td style="text-align:right; color:#ef4444; font-size:13px; font-weight:700;">{{.DownSince}}</td>
                </tr>
              </table>
              {{if .DashboardURL}}
              <div style="text-align:center; margin-top:22px;">
                <a href="{{.DashboardURL}}" style="display:inline-block; background-color:#22c55e; color:#0c121c; text-decoration:none; padding:12px 22px; border-radius:10px; font-weight:700; font-size:13px;">Open monitor</a>
              </div>
              {{end}}
            </td>
          </tr>
          <tr>
            <td style="padding:18px 28px 26px 28px; border-top:1px solid #1f2937; color:#9ca3af; font-size:11px;">
              You receive this alert because you own this monitor.
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

// Subject тема письма
func (e AlertEmail) Subject() string {
	return fmt.Sprintf("🚨 Alert: %s is DOWN", e.MonitorName)
}

// Render собирает HTML письма, имя монитора экранируется шаблоном
func (e AlertEmail) Render() (string, error) {
	appName := e.AppName
	if appName == "" {
		appName = "SilentFail"
	}

	data := struct {
		Subject      string
		AppName      string
		MonitorName  string
		LastPing     string
		DownSince    string
		DashboardURL string
	}{
		Subject:      e.Subject(),
		AppName:      appName,
		MonitorName:  e.MonitorName,
		LastPing:     e.LastPing.UTC().Format(alertTimeLayout),
		DownSince:    e.DownSince.UTC().Format(alertTimeLayout),
		DashboardURL: e.DashboardURL,
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render alert email: %w", err)
	}

	return buf.String(), nil
}

// MonitorURL ссылка на страницу монитора
func MonitorURL(baseURL, monitorID string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return ""
	}
	return baseURL + "/monitors/" + monitorID
}
