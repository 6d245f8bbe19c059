package models

import (
	"sort"
	"strings"
)

// DefaultProfession is used in prompts when the backend does not describe the business.
const DefaultProfession = "Clinic"

// LeadTypeOption is one top-level choice presented after the greeting.
type LeadTypeOption struct {
	ID    string `json:"id,omitempty" mapstructure:"id"`
	Value string `json:"value" mapstructure:"value"`
	Text  string `json:"text" mapstructure:"text"`
}

// ServiceOption is a service offered by the deployment.
type ServiceOption struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// FAQ is a question/answer pair used to ground side-question answers.
type FAQ struct {
	Question string `json:"question" mapstructure:"question"`
	Answer   string `json:"answer" mapstructure:"answer"`
}

// AttachedWorkflow links a treatment plan to a workflow.
type AttachedWorkflow struct {
	WorkflowID string `json:"workflowId" mapstructure:"workflowId"`
	Order      int    `json:"order" mapstructure:"order"`
}

// TreatmentPlan is a backend-specific service entry that may carry attached workflows.
type TreatmentPlan struct {
	ID                string             `json:"_id,omitempty" mapstructure:"_id"`
	Question          string             `json:"question" mapstructure:"question"`
	Answer            string             `json:"answer,omitempty" mapstructure:"answer"`
	Description       string             `json:"description,omitempty" mapstructure:"description"`
	AttachedWorkflows []AttachedWorkflow `json:"attachedWorkflows,omitempty" mapstructure:"attachedWorkflows"`
}

// WorkflowOption is an answer choice on a workflow question.
type WorkflowOption struct {
	Text           string `json:"text" mapstructure:"text"`
	IsTerminal     bool   `json:"isTerminal" mapstructure:"isTerminal"`
	NextQuestionID string `json:"nextQuestionId,omitempty" mapstructure:"nextQuestionId"`
	Order          int    `json:"order" mapstructure:"order"`
}

// Attachment describes a file attached to a workflow question.
type Attachment struct {
	HasFile  bool   `json:"hasFile" mapstructure:"hasFile"`
	Filename string `json:"filename,omitempty" mapstructure:"filename"`
}

// WorkflowQuestion is a node in a workflow question graph.
type WorkflowQuestion struct {
	ID         string           `json:"_id" mapstructure:"_id"`
	Question   string           `json:"question" mapstructure:"question"`
	Order      int              `json:"order" mapstructure:"order"`
	IsActive   bool             `json:"isActive" mapstructure:"isActive"`
	IsRoot     bool             `json:"isRoot,omitempty" mapstructure:"isRoot"`
	Options    []WorkflowOption `json:"options,omitempty" mapstructure:"options"`
	Attachment Attachment       `json:"attachment,omitempty" mapstructure:"attachment"`
}

// SortedOptions returns the question's options ordered by their order field.
func (q WorkflowQuestion) SortedOptions() []WorkflowOption {
	opts := make([]WorkflowOption, len(q.Options))
	copy(opts, q.Options)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Order < opts[j].Order })
	return opts
}

// Workflow is a backend-authored question graph attached to a service.
type Workflow struct {
	ID        string             `json:"_id" mapstructure:"_id"`
	Title     string             `json:"title,omitempty" mapstructure:"title"`
	Owner     string             `json:"owner,omitempty" mapstructure:"owner"`
	Questions []WorkflowQuestion `json:"questions" mapstructure:"questions"`
}

// Integration holds per-deployment chatbot settings.
type Integration struct {
	Greeting            string `json:"greeting,omitempty" mapstructure:"greeting"`
	AssistantName       string `json:"assistantName,omitempty" mapstructure:"assistantName"`
	CompanyName         string `json:"companyName,omitempty" mapstructure:"companyName"`
	ValidateEmail       bool   `json:"validateEmail" mapstructure:"validateEmail"`
	ValidatePhoneNumber bool   `json:"validatePhoneNumber" mapstructure:"validatePhoneNumber"`
	AppID               string `json:"appId,omitempty" mapstructure:"appId"`
	// ReviewLink is shown after a successful submission when set.
	ReviewLink string `json:"googleReviewLink,omitempty" mapstructure:"googleReviewLink"`
}

// DefaultIntegration returns the settings used when the backend omits them.
func DefaultIntegration() Integration {
	return Integration{ValidateEmail: true, ValidatePhoneNumber: true}
}

// App identifies the backend application a deployment belongs to.
type App struct {
	ID string `json:"_id,omitempty" mapstructure:"_id"`
}

// Context is the per-deployment configuration fetched from the backend once per session.
type Context struct {
	UserID         string           `json:"userId"`
	LeadTypes      []LeadTypeOption `json:"leadTypes"`
	Services       []ServiceOption  `json:"services"`
	TreatmentPlans []TreatmentPlan  `json:"treatmentPlans,omitempty"`
	FAQs           []FAQ            `json:"faqs,omitempty"`
	Profession     string           `json:"profession"`
	Integration    Integration      `json:"integration"`
	Workflows      []Workflow       `json:"workflows,omitempty"`
	App            App              `json:"app"`
}

// ProfessionOrDefault returns the profession description or DefaultProfession.
func (c *Context) ProfessionOrDefault() string {
	if c == nil || strings.TrimSpace(c.Profession) == "" {
		return DefaultProfession
	}
	return c.Profession
}

// AllServiceNames merges plain services with treatment-plan questions in backend order,
// dropping blanks and case-insensitive duplicates.
func (c *Context) AllServiceNames() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}
	for _, s := range c.Services {
		add(s.Name)
	}
	for _, tp := range c.TreatmentPlans {
		add(tp.Question)
	}
	return names
}

// LeadTypeByValue returns the lead type option with the given value.
func (c *Context) LeadTypeByValue(value string) (LeadTypeOption, bool) {
	if c == nil {
		return LeadTypeOption{}, false
	}
	for _, lt := range c.LeadTypes {
		if lt.Value == value {
			return lt, true
		}
	}
	return LeadTypeOption{}, false
}

// TreatmentPlanFor finds the treatment plan whose question matches service case-insensitively.
func (c *Context) TreatmentPlanFor(service string) (TreatmentPlan, bool) {
	if c == nil {
		return TreatmentPlan{}, false
	}
	target := strings.ToLower(strings.TrimSpace(service))
	for _, tp := range c.TreatmentPlans {
		if strings.ToLower(strings.TrimSpace(tp.Question)) == target {
			return tp, true
		}
	}
	return TreatmentPlan{}, false
}

// WorkflowByID returns the workflow with the given id.
func (c *Context) WorkflowByID(id string) (Workflow, bool) {
	if c == nil || id == "" {
		return Workflow{}, false
	}
	for _, wf := range c.Workflows {
		if wf.ID == id {
			return wf, true
		}
	}
	return Workflow{}, false
}

// AppIDFor resolves the application id used in attachment URLs:
// the workflow owner first, then the app record, then the integration settings.
func (c *Context) AppIDFor(wf Workflow) string {
	if wf.Owner != "" {
		return wf.Owner
	}
	if c == nil {
		return ""
	}
	if c.App.ID != "" {
		return c.App.ID
	}
	return c.Integration.AppID
}

// CacheAppID is the id used to scope cached translations and greetings for this deployment.
func (c *Context) CacheAppID() string {
	if c == nil {
		return ""
	}
	if c.Integration.AppID != "" {
		return c.Integration.AppID
	}
	return c.App.ID
}
