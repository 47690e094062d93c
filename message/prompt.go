package message

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/plan"
)

// Room is the room-sketch context given to the writer. The zero value means
// the client has no sketch on file.
type Room struct {
	Type             string
	Dimensions       string
	CurrentFurniture string
	DesiredFurniture string
	Notes            string
}

// RoomFrom converts the latest sketch, which may be nil, into a Room.
func RoomFrom(s *crm.RoomSketch) Room {
	if s == nil {
		return Room{}
	}
	return Room{
		Type:             s.RoomType,
		Dimensions:       s.Dimensions,
		CurrentFurniture: s.CurrentFurniture,
		DesiredFurniture: s.DesiredFurniture,
		Notes:            s.LayoutNotes,
	}
}

// Request describes the message to write.
type Request struct {
	Segment plan.Segment
	Style   Style
	Client  crm.Client
	Room    Room
}

const promptText = `You are a helpful, warm-toned furniture sales assistant writing a personalized {{.Style}} follow-up message.

Here is a sample template to use as a base:
"""{{.Template}}"""

Client Info:
Name: {{.Name}}
Phone: {{or .Client.Phone "n/a"}}
Style Preference: {{or .Client.Style "n/a"}}
Rooms of Interest: {{or .Client.Rooms "n/a"}}
Budget: {{or .Client.Budget "n/a"}}
{{with .Room}}
Room Sketch (latest):
Room: {{or .Type "n/a"}}
Dimensions: {{or .Dimensions "n/a"}}
Current Furniture: {{or .CurrentFurniture "n/a"}}
Desired Furniture: {{or .DesiredFurniture "n/a"}}
Notes: {{or .Notes "n/a"}}
{{else}}
No room sketch on file.
{{end}}
{{.Tone}}
Write this in a personal, natural voice. Avoid robotic language. Be helpful and human.
`

var promptTmpl = template.Must(template.New("followup-prompt").Parse(promptText))

type promptData struct {
	Style    Style
	Template string
	Name     string
	Client   crm.Client
	Room     *Room
	Tone     string
}

// Prompt renders the instruction sent to the language model for req.
func Prompt(req Request) (string, error) {
	style := req.Style
	if style == "" {
		style = DefaultStyle
	}
	kind, ok := KindFor(req.Segment)
	if !ok {
		return "", fmt.Errorf("%w for segment %q", ErrNoTemplate, req.Segment)
	}
	tmpl, err := Template(kind, style)
	if err != nil {
		return "", err
	}

	data := promptData{
		Style:    style,
		Template: tmpl,
		Name:     displayName(req.Client.Name),
		Client:   req.Client,
		Tone:     Tone(style),
	}
	if req.Room != (Room{}) {
		room := req.Room
		data.Room = &room
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// displayName normalises whitespace and capitalisation of a client name.
// A Caser keeps state, so each call gets its own.
func displayName(name string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}

// firstName returns the first word of the display name.
func firstName(name string) string {
	fields := strings.Fields(displayName(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
