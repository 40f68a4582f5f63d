package usecase

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// DefaultPortalURL is linked from every notification.
const DefaultPortalURL = "https://pmn-marches.sn"

const (
	digestTextLimit  = 5
	titleTextLimit   = 100
	frenchDateLayout = "02/01/2006"
)

var digestHTML = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', sans-serif; color: #374151; background-color: #f3f4f6;">
<div style="max-width: 800px; margin: 0 auto; padding: 20px; background-color: #ffffff;">
<h1 style="color: #059669; text-align: center;">Nouveaux appels d'offres disponibles</h1>
<p style="text-align: center; color: #6b7280;">{{len .Tenders}} nouvelle(s) opportunité(s) correspondant à vos critères</p>
<table style="width: 100%; border-collapse: collapse;">
<thead><tr><th>Référence</th><th>Objet</th><th>Institution</th><th>Région</th><th>Date limite</th></tr></thead>
<tbody>
{{- range .Tenders}}
<tr><td>{{.Reference}}</td><td>{{.Title}}</td><td>{{.Institution}}</td><td>{{.Region}}</td><td>{{.DeadlineDate.Format "02/01/2006"}}</td></tr>
{{- end}}
</tbody>
</table>
<p style="text-align: center;"><a href="{{.Portal}}/appels-offres">Voir tous les appels d'offres</a></p>
<p style="font-size: 12px; color: #9ca3af; text-align: center;">Vous recevez ce message car vous avez activé les alertes sur PMN Marchés Publics.</p>
</div>
</body></html>
`))

var reminderHTML = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', sans-serif; color: #374151; background-color: #f3f4f6;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; background-color: #ffffff;">
<h1 style="color: {{.Color}}; text-align: center;">Plus que {{.DaysLeft}} jour(s) !</h1>
<h2>{{.Tender.Title}}</h2>
<p><strong>Référence:</strong> {{.Tender.Reference}}<br>
<strong>Institution:</strong> {{.Tender.Institution}}<br>
<strong>Date limite:</strong> {{.Tender.DeadlineDate.Format "02/01/2006"}}</p>
<p style="text-align: center;"><a href="{{.Portal}}/appels-offres/{{.Tender.ID}}">Consulter l'appel d'offres</a></p>
</div>
</body></html>
`))

// DigestMessage renders the new-tenders notification.
func DigestMessage(tenders []domain.TenderRecord, portal string) (ports.Notification, error) {
	portal = portalOrDefault(portal)

	var text strings.Builder
	fmt.Fprintf(&text, "*PMN Marchés Publics*\n\n%d nouveau(x) appel(s) d'offres :\n\n", len(tenders))
	for i, t := range tenders {
		if i == digestTextLimit {
			fmt.Fprintf(&text, "_Et %d autre(s)..._\n\n", len(tenders)-digestTextLimit)
			break
		}
		fmt.Fprintf(&text, "*%s*\n%s\n%s\n%s | %s\n\n",
			t.Reference, truncate(t.Title, titleTextLimit), t.Institution, t.Region,
			t.DeadlineDate.Format(frenchDateLayout))
	}
	fmt.Fprintf(&text, "Consultez tous les détails sur:\n%s/appels-offres", portal)

	var html bytes.Buffer
	err := digestHTML.Execute(&html, struct {
		Tenders []domain.TenderRecord
		Portal  string
	}{tenders, portal})
	if err != nil {
		return ports.Notification{}, err
	}

	return ports.Notification{
		Subject: fmt.Sprintf("%d nouveau(x) appel(s) d'offres - PMN Marchés Publics", len(tenders)),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// ReminderMessage renders a deadline reminder for one tender.
func ReminderMessage(t domain.PersistedTender, daysLeft int, portal string) (ports.Notification, error) {
	portal = portalOrDefault(portal)

	text := fmt.Sprintf("*RAPPEL - %d jour(s) restant(s)*\n\n*%s*\n%s\n\n%s\n%s\nDate limite: *%s*\n\n%s/appels-offres/%s\n\n_PMN Marchés Publics_",
		daysLeft, t.Reference, t.Title, t.Institution, t.Region,
		t.DeadlineDate.Format(frenchDateLayout), portal, t.ID)

	color := "#059669"
	switch {
	case daysLeft <= 3:
		color = "#dc2626"
	case daysLeft <= 7:
		color = "#f59e0b"
	}

	var html bytes.Buffer
	err := reminderHTML.Execute(&html, struct {
		Tender   domain.PersistedTender
		DaysLeft int
		Color    string
		Portal   string
	}{t, daysLeft, color, portal})
	if err != nil {
		return ports.Notification{}, err
	}

	return ports.Notification{
		Subject: fmt.Sprintf("Rappel: %d jour(s) restant(s) - %s", daysLeft, t.Reference),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// DaysLeft rounds the remaining time up to whole days.
func DaysLeft(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func portalOrDefault(portal string) string {
	if portal == "" {
		return DefaultPortalURL
	}
	return strings.TrimRight(portal, "/")
}
