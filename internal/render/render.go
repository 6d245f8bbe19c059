// Package render turns prompts and option lists into channel-specific text: HTML-like buttons for
// the web widget, numbered lists for messaging apps and natural spoken lists for voice.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Style is how a channel displays selectable options.
type Style int

const (
	// StyleButtons renders <button> tags that the web widget turns into UI buttons.
	StyleButtons Style = iota
	// StyleNumbered renders "1. X" lines; users answer with the number.
	StyleNumbered
	// StyleSpoken renders "X, Y, or Z" for text-to-speech.
	StyleSpoken
)

// NumberedInstruction follows every numbered list.
const NumberedInstruction = "Please reply with the number of your choice."

// StyleFor returns the option style of a channel.
func StyleFor(ch models.Channel) Style {
	switch {
	case ch == models.ChannelVoice:
		return StyleSpoken
	case ch.UsesNumberedLists():
		return StyleNumbered
	default:
		return StyleButtons
	}
}

// Option is one selectable choice.
type Option struct {
	Label string
}

// Labels builds options from plain labels.
func Labels(labels ...string) []Option {
	out := make([]Option, 0, len(labels))
	for _, l := range labels {
		out = append(out, Option{Label: l})
	}
	return out
}

// LeadTypeOptions builds options from lead types.
func LeadTypeOptions(lts []models.LeadTypeOption) []Option {
	out := make([]Option, 0, len(lts))
	for _, lt := range lts {
		label := strings.TrimSpace(lt.Text)
		if label == "" {
			label = lt.Value
		}
		out = append(out, Option{Label: label})
	}
	return out
}

// WithOptions appends the options to prompt in the given style. Empty labels are skipped.
func WithOptions(style Style, prompt string, opts []Option) string {
	prompt = strings.TrimSpace(prompt)
	var labels []Option
	for _, o := range opts {
		if strings.TrimSpace(o.Label) != "" {
			labels = append(labels, o)
		}
	}
	if len(labels) == 0 {
		return prompt
	}
	var list string
	switch style {
	case StyleNumbered:
		list = numbered(labels)
	case StyleSpoken:
		return joinNonEmpty(" ", prompt, spoken(labels))
	default:
		list = buttons(labels)
	}
	return joinNonEmpty("\n\n", prompt, list)
}

func buttons(opts []Option) string {
	lines := make([]string, len(opts))
	for i, o := range opts {
		lines[i] = fmt.Sprintf("<button>%s</button>", html.EscapeString(strings.TrimSpace(o.Label)))
	}
	return strings.Join(lines, "\n")
}

func numbered(opts []Option) string {
	var b strings.Builder
	for i, o := range opts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(o.Label))
	}
	b.WriteString("\n")
	b.WriteString(NumberedInstruction)
	return b.String()
}

var wishPrefix = regexp.MustCompile(`(?i)^(i would like|i'd like|i want)(\s+to)?\s+`)

// SpokenLabel strips a leading "I would like (to)" so the option reads naturally when spoken.
func SpokenLabel(label string) string {
	return strings.TrimSpace(wishPrefix.ReplaceAllString(strings.TrimSpace(label), ""))
}

func spoken(opts []Option) string {
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = SpokenLabel(o.Label)
	}
	switch len(labels) {
	case 1:
		return labels[0] + "."
	case 2:
		return labels[0] + " or " + labels[1] + "."
	}
	return strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1] + "."
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

var (
	buttonTag    = regexp.MustCompile(`(?s)<button[^>]*>(.*?)</button>`)
	fileTag      = regexp.MustCompile(`(?s)<file[^>]*>.*?</file>`)
	numberedLine = regexp.MustCompile(`(?m)^\s*\d+\.\s+[^\n]+$`)
	spaces       = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// StripOptionLists removes buttons and numbered lists from generated text so the caller can
// append the canonical list itself.
func StripOptionLists(text string) string {
	text = buttonTag.ReplaceAllString(text, "")
	text = numberedLine.ReplaceAllString(text, "")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// ButtonLabels returns the labels of all <button> tags in text.
func ButtonLabels(text string) []string {
	var out []string
	for _, m := range buttonTag.FindAllStringSubmatch(text, -1) {
		out = append(out, html.UnescapeString(strings.TrimSpace(m[1])))
	}
	return out
}

// ForVoice prepares text for speech: button tags become their labels, file markers and
// emoji are dropped and whitespace is collapsed.
func ForVoice(text string) string {
	text = fileTag.ReplaceAllString(text, "")
	text = buttonTag.ReplaceAllString(text, "$1")
	text = html.UnescapeString(text)
	return CollapseSpace(StripEmoji(text))
}

// CollapseSpace replaces runs of whitespace with single spaces.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ForPlainText converts button markup into a numbered list for channels that cannot show buttons.
func ForPlainText(text string) string {
	labels := ButtonLabels(text)
	if len(labels) == 0 {
		return text
	}
	return WithOptions(StyleNumbered, StripOptionLists(text), Labels(labels...))
}
