package flow

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/workflow"
)

// Fields are the lead details collected so far. Empty strings mean "not collected".
type Fields struct {
	LeadType        string            `json:"leadType,omitempty"`
	ServiceType     string            `json:"serviceType,omitempty"`
	LeadName        string            `json:"leadName,omitempty"`
	LeadEmail       string            `json:"leadEmail,omitempty"`
	LeadPhoneNumber string            `json:"leadPhoneNumber,omitempty"`
	Title           string            `json:"title,omitempty"`
	WorkflowAnswers []workflow.Answer `json:"workflowAnswers,omitempty"`
}

// OTPState tracks the one-time-code round trips for each contact channel.
type OTPState struct {
	EmailSent     bool `json:"emailSent"`
	EmailVerified bool `json:"emailVerified"`
	PhoneSent     bool `json:"phoneSent"`
	PhoneVerified bool `json:"phoneVerified"`
}

// LeadPayload is the body sent to the backend when a lead is created.
type LeadPayload struct {
	LeadType        string            `json:"leadType"`
	ServiceType     string            `json:"serviceType"`
	LeadName        string            `json:"leadName"`
	LeadEmail       string            `json:"leadEmail"`
	Title           string            `json:"title"`
	LeadPhoneNumber string            `json:"leadPhoneNumber,omitempty"`
	WorkflowAnswers []workflow.Answer `json:"workflowAnswers,omitempty"`
	History         []models.Message  `json:"history,omitempty"`
}

// Controller owns the current state, the collected fields and the verification flags of one session.
// It is not safe for concurrent use; callers serialize access per session.
type Controller struct {
	State         State    `json:"state"`
	Fields        Fields   `json:"fields"`
	OTP           OTPState `json:"otp"`
	ValidateEmail bool     `json:"validateEmail"`
	ValidatePhone bool     `json:"validatePhone"`
	SkipPhone     bool     `json:"skipPhone"`
}

// New creates a controller in the GREETING state using the deployment's verification settings.
func New(integration models.Integration) *Controller {
	return &Controller{
		State:         StateGreeting,
		ValidateEmail: integration.ValidateEmail,
		ValidatePhone: integration.ValidatePhoneNumber,
	}
}

// ConfigureForChannel applies channel capabilities. Channels that already know the caller's
// number skip phone collection, and that number counts as verified.
func (c *Controller) ConfigureForChannel(ch models.Channel, knownPhone string) {
	if !ch.SkipsPhoneCollection() {
		return
	}
	c.SkipPhone = true
	c.OTP.PhoneVerified = true
	if knownPhone != "" && c.Fields.LeadPhoneNumber == "" {
		c.Fields.LeadPhoneNumber = knownPhone
	}
}

// SetLeadType records the chosen lead type. The lead title is derived from the option's display text.
func (c *Controller) SetLeadType(opt models.LeadTypeOption) {
	c.Fields.LeadType = opt.Value
	c.Fields.Title = leadTitle(opt)
}

func leadTitle(opt models.LeadTypeOption) string {
	title := strings.TrimSpace(opt.Text)
	if title == "" {
		title = strings.TrimSpace(opt.Value)
	}
	return title
}

// SetService records the chosen service.
func (c *Controller) SetService(name string) {
	c.Fields.ServiceType = strings.TrimSpace(name)
}

// SetName records the lead's name.
func (c *Controller) SetName(name string) {
	c.Fields.LeadName = strings.TrimSpace(name)
}

// SetEmail records the lead's email address.
func (c *Controller) SetEmail(email string) {
	c.Fields.LeadEmail = strings.TrimSpace(email)
}

// SetPhone records the lead's phone number.
func (c *Controller) SetPhone(phone string) {
	c.Fields.LeadPhoneNumber = strings.TrimSpace(phone)
}

// SetWorkflowAnswers records the answers of a finished service workflow.
func (c *Controller) SetWorkflowAnswers(answers []workflow.Answer) {
	c.Fields.WorkflowAnswers = answers
}

// ChangeEmail replaces the address while a code is pending and clears the email verification flags.
// The caller is expected to send a new code.
func (c *Controller) ChangeEmail(email string) {
	c.SetEmail(email)
	c.OTP.EmailSent = false
	c.OTP.EmailVerified = false
	if c.State == StateEmailOTPVerification {
		c.State = StateEmailOTPSent
	}
	slog.Debug("Controller.ChangeEmail: email verification reset")
}

// ChangePhone replaces the number while a code is pending and clears the phone verification flags.
func (c *Controller) ChangePhone(phone string) {
	c.SetPhone(phone)
	c.OTP.PhoneSent = false
	c.OTP.PhoneVerified = false
	if c.State == StatePhoneOTPVerification {
		c.State = StatePhoneOTPSent
	}
	slog.Debug("Controller.ChangePhone: phone verification reset")
}

// MarkEmailSent records that a code was dispatched to the lead's email.
func (c *Controller) MarkEmailSent() { c.OTP.EmailSent = true }

// MarkPhoneSent records that a code was dispatched to the lead's phone.
func (c *Controller) MarkPhoneSent() { c.OTP.PhoneSent = true }

// MarkEmailVerified records a successful email verification.
func (c *Controller) MarkEmailVerified() { c.OTP.EmailVerified = true }

// MarkPhoneVerified records a successful phone verification.
func (c *Controller) MarkPhoneVerified() { c.OTP.PhoneVerified = true }

// NextState computes the state that follows the current one given the collected fields,
// the verification flags and the configuration. It does not modify the controller.
func (c *Controller) NextState() State {
	f := c.Fields
	switch c.State {
	case StateGreeting:
		return StateLeadTypeSelection
	case StateLeadTypeSelection:
		if f.LeadType != "" {
			return StateServiceSelection
		}
	case StateServiceSelection:
		if f.ServiceType != "" {
			return StateNameCollection
		}
	case StateWorkflowQuestion:
		if len(f.WorkflowAnswers) > 0 {
			return StateNameCollection
		}
	case StateNameCollection:
		if f.LeadName != "" {
			return StateEmailCollection
		}
	case StateEmailCollection:
		if f.LeadEmail != "" {
			switch {
			case c.ValidateEmail:
				return StateEmailOTPSent
			case c.SkipPhone:
				return StateComplete
			default:
				return StatePhoneCollection
			}
		}
	case StateEmailOTPSent:
		return StateEmailOTPVerification
	case StateEmailOTPVerification:
		if c.OTP.EmailVerified {
			if c.SkipPhone {
				return StateComplete
			}
			return StatePhoneCollection
		}
	case StatePhoneCollection:
		if c.SkipPhone {
			return StateComplete
		}
		if f.LeadPhoneNumber != "" {
			if c.ValidatePhone {
				return StatePhoneOTPSent
			}
			return StateComplete
		}
	case StatePhoneOTPSent:
		return StatePhoneOTPVerification
	case StatePhoneOTPVerification:
		if c.OTP.PhoneVerified {
			return StateComplete
		}
	case StateComplete:
		return StateComplete
	}
	return c.State
}

// Advance moves to NextState and reports whether the state changed.
func (c *Controller) Advance() bool {
	return c.TransitionTo(c.NextState())
}

// TransitionTo sets the state after an external event validated a step. Moving backwards is
// refused, except between the two sub-steps of the same verification. It reports whether the state changed.
func (c *Controller) TransitionTo(s State) bool {
	if !s.IsValid() {
		slog.Warn("Controller.TransitionTo: unknown state", "state", s)
		return false
	}
	if s == c.State {
		return false
	}
	if s.Before(c.State) && (s.otpPair() == "" || s.otpPair() != c.State.otpPair()) {
		slog.Warn("Controller.TransitionTo: refusing backward transition", "from", c.State, "to", s)
		return false
	}
	slog.Info("Controller.TransitionTo: state transition", "from", c.State, "to", s)
	c.State = s
	return true
}

// CanGenerateJSON reports whether enough has been collected and verified to create the lead.
func (c *Controller) CanGenerateJSON() bool {
	f := c.Fields
	if f.LeadType == "" || f.ServiceType == "" || f.LeadName == "" || f.LeadEmail == "" {
		return false
	}
	if !c.SkipPhone && f.LeadPhoneNumber == "" {
		return false
	}
	if c.ValidateEmail && !c.OTP.EmailVerified {
		return false
	}
	if c.ValidatePhone && !c.SkipPhone && !c.OTP.PhoneVerified {
		return false
	}
	return true
}

// JSONData builds the lead payload from the collected fields. History is included when non-empty.
func (c *Controller) JSONData(history []models.Message) LeadPayload {
	f := c.Fields
	p := LeadPayload{
		LeadType:        f.LeadType,
		ServiceType:     f.ServiceType,
		LeadName:        f.LeadName,
		LeadEmail:       f.LeadEmail,
		Title:           f.Title,
		LeadPhoneNumber: f.LeadPhoneNumber,
	}
	if len(f.WorkflowAnswers) > 0 {
		p.WorkflowAnswers = append([]workflow.Answer(nil), f.WorkflowAnswers...)
	}
	if len(history) > 0 {
		p.History = append([]models.Message(nil), history...)
	}
	return p
}
