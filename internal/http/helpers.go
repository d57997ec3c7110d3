package http

import (
	"fmt"
	"html/template"
	"net/http"

	"goalplanner/internal/core"
)

// maxFormBytes bounds the size of a form submission.
const maxFormBytes = 64 << 10

// templateFuncs are the helpers available to every template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency":    core.FormatCurrency,
		"fixed":       core.FormatFixed,
		"date":        core.FormatDate,
		"statusText":  statusText,
		"statusClass": statusClass,
		"barClass":    statusClass,
		"barWidth":    barWidth,
	}
}

// statusText is the status line of a goal card.
func statusText(v core.GoalView) string {
	switch v.Status {
	case core.StatusCompleted:
		return "Completed"
	case core.StatusOverdue:
		return "Overdue"
	case core.StatusUrgent:
		return fmt.Sprintf("Urgent (%d days left)", v.DaysRemaining)
	default:
		return fmt.Sprintf("%d days remaining", v.DaysRemaining)
	}
}

func statusClass(s core.Status) string {
	if s == core.StatusNormal {
		return ""
	}
	return string(s)
}

// barWidth clamps a percentage for use as a CSS width. The label keeps the raw value.
func barWidth(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// parseForm reads a bounded urlencoded or multipart body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	return r.ParseForm()
}

// redirectHome answers a plain form post so the browser reloads the page.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
