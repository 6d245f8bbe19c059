package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Document sources, stored in the "source" metadata key.
const (
	SourceLeadType      = "lead_type"
	SourceService       = "service"
	SourceTreatmentPlan = "treatment_plan"
	SourceFAQ           = "faq"
	SourceProfession    = "profession"
	SourceIntegration   = "integration"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200

	defaultGreeting = "Hi! How can I help you today?"
)

func doc(content, source, kind string, extra map[string]any) schema.Document {
	md := map[string]any{"source": source, "type": kind}
	for k, v := range extra {
		md[k] = v
	}
	return schema.Document{PageContent: content, Metadata: md}
}

// BuildDocuments converts a deployment context into retrievable documents: lead types, services,
// treatment plans (as services and as Q&A), FAQs, the profession and the integration settings.
func BuildDocuments(c *models.Context) []schema.Document {
	if c == nil {
		return nil
	}
	var docs []schema.Document
	for i, lt := range c.LeadTypes {
		if lt.Value == "" || lt.Text == "" {
			continue
		}
		text := fmt.Sprintf("Lead Type Option %d:\nValue: %s\nText: %s\nDescription: This is a lead type option that users can select.", i+1, lt.Value, lt.Text)
		docs = append(docs, doc(text, SourceLeadType, "lead_type", map[string]any{"value": lt.Value}))
	}

	n := 0
	for _, s := range c.Services {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		n++
		docs = append(docs, doc(serviceText(n, s.Name, s.Description, ""), SourceService, "service", map[string]any{"name": s.Name}))
	}
	for i, tp := range c.TreatmentPlans {
		if strings.TrimSpace(tp.Question) == "" {
			continue
		}
		n++
		docs = append(docs, doc(serviceText(n, tp.Question, tp.Description, " (treatment plan)"), SourceService, "service", map[string]any{"name": tp.Question}))
		answer := tp.Answer
		if answer == "" {
			answer = tp.Description
		}
		if answer == "" {
			continue
		}
		text := fmt.Sprintf("Treatment Plan %d:\nQuestion: %s\nAnswer: %s", i+1, tp.Question, answer)
		if tp.Answer != "" && tp.Description != "" {
			text += "\nDescription: " + tp.Description
		}
		docs = append(docs, doc(text, SourceTreatmentPlan, "treatment_plan_qa", nil))
	}

	for i, f := range c.FAQs {
		if f.Question == "" || f.Answer == "" {
			continue
		}
		docs = append(docs, doc(fmt.Sprintf("FAQ %d:\nQuestion: %s\nAnswer: %s", i+1, f.Question, f.Answer), SourceFAQ, "faq", nil))
	}

	if p := strings.TrimSpace(c.Profession); p != "" {
		docs = append(docs, doc(fmt.Sprintf("About our %s: %s\nThis is the type of business/profession.", p, p), SourceProfession, "profession", nil))
	}
	docs = append(docs, doc(integrationText(c.Integration), SourceIntegration, "integration", nil))
	return docs
}

func serviceText(n int, name, description, suffix string) string {
	text := fmt.Sprintf("Service Option %d:\nName: %s", n, name)
	if description != "" {
		text += "\nDescription: " + description
	}
	return text + "\nThis is a service option that users can select" + suffix + "."
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

func integrationText(in models.Integration) string {
	var b strings.Builder
	if in.AssistantName != "" {
		fmt.Fprintf(&b, "Assistant Name: %s\n", in.AssistantName)
	}
	greeting := strings.TrimSpace(in.Greeting)
	if greeting == "" {
		greeting = defaultGreeting
	}
	fmt.Fprintf(&b, "Greeting Message: %s\n", greeting)
	fmt.Fprintf(&b, "Email Validation: %s\n", enabled(in.ValidateEmail))
	fmt.Fprintf(&b, "Phone Validation: %s", enabled(in.ValidatePhoneNumber))
	return b.String()
}

// Split chunks long documents, keeping metadata on every chunk.
func Split(docs []schema.Document) ([]schema.Document, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	out, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}
	return out, nil
}

// FormatContext renders retrieved documents with their source for use in a prompt.
func FormatContext(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata["source"].(string)
		kind, _ := d.Metadata["type"].(string)
		if source == "" {
			source = "knowledge_base"
		}
		if kind == "" {
			kind = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[SOURCE: %s | TYPE: %s]\n%s", strings.ToUpper(source), strings.ToUpper(kind), d.PageContent))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
