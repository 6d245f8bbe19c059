package responder

import (
	"regexp"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

const defaultAssistantName = "Assistant"

var (
	companyFragments = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+from\s+\{companyName\}`),
		regexp.MustCompile(`(?i)\s+at\s+\{companyName\}`),
		regexp.MustCompile(`(?i)\s+of\s+\{companyName\}`),
		regexp.MustCompile(`(?i)\s+with\s+\{companyName\}`),
		regexp.MustCompile(`(?i)\{companyName\}\s+`),
		regexp.MustCompile(`(?i)\s*\{companyName\}`),
	}
	whitespaceRun      = regexp.MustCompile(`\s+`)
	spaceBeforePunct   = regexp.MustCompile(`\s+([.,!?])`)
	doubledPunctuation = regexp.MustCompile(`([.,!?])\s+([.,!?])`)
)

// ProcessGreeting fills the {assistantName} and {companyName} placeholders of a greeting template.
// Without a company name, phrases such as "from {companyName}" are removed and spacing and
// punctuation are tidied.
func ProcessGreeting(template, assistantName, companyName string) string {
	if template == "" {
		return ""
	}
	assistant := strings.TrimSpace(assistantName)
	if assistant == "" {
		assistant = defaultAssistantName
	}
	out := strings.ReplaceAll(template, "{assistantName}", assistant)
	company := strings.TrimSpace(companyName)
	if company != "" {
		return strings.ReplaceAll(out, "{companyName}", company)
	}
	for _, re := range companyFragments {
		out = re.ReplaceAllString(out, " ")
	}
	out = strings.TrimSpace(whitespaceRun.ReplaceAllString(out, " "))
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	return doubledPunctuation.ReplaceAllString(out, "$1$2")
}

// GreetingText returns the deployment's greeting with placeholders filled, or the default
// introduction when none is configured.
func GreetingText(in models.Integration) string {
	template := strings.TrimSpace(in.Greeting)
	if template == "" {
		assistant := strings.TrimSpace(in.AssistantName)
		company := strings.TrimSpace(in.CompanyName)
		switch {
		case company != "":
			template = "Hi this is {assistantName} your virtual ai assistant from {companyName}. How can I help you today?"
		case assistant != "":
			template = "Hi this is {assistantName} your virtual ai assistant. How can I help you today?"
		default:
			template = "Hi this is {assistantName} your virtual ai assistant from {companyName}. How can I help you today?"
		}
	}
	return ProcessGreeting(template, in.AssistantName, in.CompanyName)
}
