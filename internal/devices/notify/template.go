package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Device {{.ActionLabel}}]
Device: {{.Device}}
Owner: {{.OwnerID}}
{{- if .Known }}
Power: {{.PowerWatts}} W x {{.Quantity}}
Usage: {{.HoursPerDay}} h/day
Monthly: {{.MonthlyKWh}} kWh ({{.Currency}} {{.MonthlyCost}})
{{- end }}
At: {{.At}}
`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Action      string
	ActionLabel string
	Device      string
	DeviceID    string
	OwnerID     string
	Known       bool
	PowerWatts  string
	HoursPerDay string
	Quantity    int
	MonthlyKWh  string
	MonthlyCost string
	Currency    string
	At          string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("device-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("device template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
