// Package message writes the personalized text attached to follow-up tasks.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/showroom/plan"
)

// ErrNoTemplate is returned when no template exists for a kind and style.
var ErrNoTemplate = errors.New("no message template")

// Style is the delivery channel a message is written for.
type Style string

const (
	StyleText        Style = "text"
	StylePhone       Style = "phone"
	StyleEmail       Style = "email"
	StyleHandwritten Style = "handwritten"

	DefaultStyle = StyleText
)

// Styles lists every supported style.
var Styles = []Style{StyleText, StylePhone, StyleEmail, StyleHandwritten}

// ParseStyle converts a style name into a Style.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case StyleText, StylePhone, StyleEmail, StyleHandwritten:
		return st, nil
	default:
		return "", fmt.Errorf("unknown message style %q", s)
	}
}

// Kind selects the template family: customers who bought or who browsed.
type Kind string

const (
	KindBought  Kind = "bought"
	KindBrowsed Kind = "browsed"
)

// KindFor maps a client segment onto its template family. Unknown segments
// have no kind.
func KindFor(seg plan.Segment) (Kind, bool) {
	switch seg {
	case plan.Buyer, plan.LongTerm:
		return KindBought, true
	case plan.Shopper:
		return KindBrowsed, true
	default:
		return "", false
	}
}

type sample struct {
	Subject string
	Body    string
}

var templates = map[Kind]map[Style]sample{
	KindBought: {
		StyleText: {Body: "Hey {name}, thanks again for your purchase! Let me know if you need anything."},
		StylePhone: {Body: "Hi {name}, just checking in to make sure everything's going smoothly with your order. " +
			"Any questions I can help with?"},
		StyleEmail: {
			Subject: "Thank You for Shopping with Us",
			Body: "Hi {name},\n\n" +
				"Thank you for choosing us. I hope you love your new {product_or_room}. " +
				"If there's anything I can assist with, like styling tips, product care, or next steps, I'm here for you.\n\n" +
				"All the best,\n{your_name}",
		},
		StyleHandwritten: {Body: "Thanks for trusting us with your space. " +
			"Wishing you many great moments with your new {product_or_room}! - {your_name}"},
	},
	KindBrowsed: {
		StyleText: {Body: "Hi {name}, it was great chatting with you! " +
			"Let me know if you have any questions or need help narrowing down choices."},
		StylePhone: {Body: "Hi {name}, just following up from your recent visit. " +
			"No pressure, just checking if I can help make the decision easier!"},
		StyleEmail: {
			Subject: "Still Thinking About Your Space?",
			Body: "Hi {name},\n\n" +
				"Really enjoyed helping you explore options the other day. If you're still considering ideas, " +
				"I'd love to help finalize the look or answer any questions you have.\n\n" +
				"Let me know what works best for you!\n\n" +
				"Best,\n{your_name}",
		},
		StyleHandwritten: {Body: "Hope our ideas helped inspire your space! " +
			"Looking forward to helping when you're ready. - {your_name}"},
	},
}

var tones = map[Style]string{
	StyleText:        "Keep it short, casual, and friendly, like you're texting someone you've already spoken to.",
	StylePhone:       "Write it like a quick phone call script: natural and spoken, with a warm greeting and easy closing.",
	StyleEmail:       "Make it slightly longer and thoughtful. Include a warm intro, a body with value, and a polite call-to-action.",
	StyleHandwritten: "Be heartfelt, personal, and brief, as if writing a quick thank-you note.",
}

// Template returns the raw template text for kind and style. Email templates
// are rendered as a subject line followed by the body.
func Template(kind Kind, style Style) (string, error) {
	t, ok := templates[kind][style]
	if !ok {
		return "", fmt.Errorf("%w for %s/%s", ErrNoTemplate, kind, style)
	}
	if t.Subject != "" {
		return "Subject: " + t.Subject + "\n\n" + t.Body, nil
	}
	return t.Body, nil
}

// Tone returns the writing instruction for style, or "" when unknown.
func Tone(style Style) string {
	return tones[style]
}
