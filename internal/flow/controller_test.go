package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/workflow"
)

func newController(validateEmail, validatePhone bool) *Controller {
	return New(models.Integration{ValidateEmail: validateEmail, ValidatePhoneNumber: validatePhone})
}

func TestNextState_FullValidatedPath(t *testing.T) {
	c := newController(true, true)
	require.Equal(t, StateGreeting, c.State)

	steps := []struct {
		apply func()
		want  State
	}{
		{func() {}, StateLeadTypeSelection},
		{func() { c.SetLeadType(models.LeadTypeOption{Value: "callback", Text: "Call back"}) }, StateServiceSelection},
		{func() { c.SetService("Braces") }, StateNameCollection},
		{func() { c.SetName("John") }, StateEmailCollection},
		{func() { c.SetEmail("a@b.co") }, StateEmailOTPSent},
		{func() { c.MarkEmailSent() }, StateEmailOTPVerification},
		{func() { c.MarkEmailVerified() }, StatePhoneCollection},
		{func() { c.SetPhone("5551234567") }, StatePhoneOTPSent},
		{func() { c.MarkPhoneSent() }, StatePhoneOTPVerification},
		{func() { c.MarkPhoneVerified() }, StateComplete},
	}
	for _, s := range steps {
		before := c.State
		s.apply()
		require.True(t, c.Advance(), "expected progress from %s", before)
		assert.Equal(t, s.want, c.State)
		assert.False(t, c.State.Before(before), "state went backwards")
	}
	assert.True(t, c.CanGenerateJSON())
	assert.Equal(t, StateComplete, c.NextState())
}

func TestNextState_StaysWithoutData(t *testing.T) {
	for _, s := range []State{StateLeadTypeSelection, StateServiceSelection, StateNameCollection,
		StateEmailCollection, StateEmailOTPVerification, StatePhoneOTPVerification, StateWorkflowQuestion} {
		c := newController(true, true)
		c.State = s
		assert.Equal(t, s, c.NextState(), "state %s should wait for data", s)
	}
}

func TestNextState_SkipPhone(t *testing.T) {
	c := newController(false, true)
	c.ConfigureForChannel(models.ChannelWhatsApp, "+15551234567")
	assert.True(t, c.SkipPhone)
	assert.True(t, c.OTP.PhoneVerified)
	assert.Equal(t, "+15551234567", c.Fields.LeadPhoneNumber)

	c.State = StateEmailCollection
	c.SetEmail("a@b.co")
	assert.Equal(t, StateComplete, c.NextState())

	c.State = StatePhoneCollection
	assert.Equal(t, StateComplete, c.NextState())
}

func TestNextState_WorkflowQuestion(t *testing.T) {
	c := newController(false, false)
	c.State = StateWorkflowQuestion
	c.SetWorkflowAnswers([]workflow.Answer{{QuestionID: "q1", Answer: "yes"}})
	assert.Equal(t, StateNameCollection, c.NextState())
}

func TestTransitionTo_RefusesBackward(t *testing.T) {
	c := newController(true, true)
	c.State = StateNameCollection
	assert.False(t, c.TransitionTo(StateLeadTypeSelection))
	assert.Equal(t, StateNameCollection, c.State)
	assert.False(t, c.TransitionTo(State("BOGUS")))

	c.State = StateEmailOTPVerification
	assert.True(t, c.TransitionTo(StateEmailOTPSent), "OTP sub-steps may be re-entered")
	assert.False(t, c.TransitionTo(StateEmailCollection))
}

func TestChangeEmailResetsVerification(t *testing.T) {
	c := newController(true, false)
	c.State = StateEmailOTPVerification
	c.SetEmail("old@b.co")
	c.MarkEmailSent()

	c.ChangeEmail("new@b.co")
	assert.Equal(t, "new@b.co", c.Fields.LeadEmail)
	assert.False(t, c.OTP.EmailSent)
	assert.False(t, c.OTP.EmailVerified)
	assert.Equal(t, StateEmailOTPSent, c.State)
}

func TestChangePhoneResetsVerification(t *testing.T) {
	c := newController(false, true)
	c.State = StatePhoneOTPVerification
	c.SetPhone("5550000000")
	c.MarkPhoneSent()

	c.ChangePhone("5551112222")
	assert.Equal(t, "5551112222", c.Fields.LeadPhoneNumber)
	assert.False(t, c.OTP.PhoneSent)
	assert.Equal(t, StatePhoneOTPSent, c.State)
}

// Readiness must equal the formula over every combination of fields, flags and configuration.
func TestCanGenerateJSON_AllCombinations(t *testing.T) {
	const bits = 11
	for mask := 0; mask < 1<<bits; mask++ {
		on := func(i int) bool { return mask&(1<<i) != 0 }
		c := &Controller{
			ValidateEmail: on(0),
			ValidatePhone: on(1),
			SkipPhone:     on(2),
			OTP:           OTPState{EmailVerified: on(3), PhoneVerified: on(4)},
		}
		if on(5) {
			c.Fields.LeadType = "callback"
		}
		if on(6) {
			c.Fields.ServiceType = "Braces"
		}
		if on(7) {
			c.Fields.LeadName = "John"
		}
		if on(8) {
			c.Fields.LeadEmail = "a@b.co"
		}
		if on(9) {
			c.Fields.LeadPhoneNumber = "5551234567"
		}
		want := on(5) && on(6) && on(7) && on(8) &&
			(on(2) || on(9)) &&
			(!on(0) || on(3)) &&
			(!on(1) || on(2) || on(4))
		if got := c.CanGenerateJSON(); got != want {
			t.Fatalf("mask %011b: CanGenerateJSON() = %v, want %v (%+v)", mask, got, want, c)
		}
	}
}

func TestCanGenerateJSON_NoValidation(t *testing.T) {
	c := newController(false, false)
	c.SetLeadType(models.LeadTypeOption{Value: "callback", Text: "Call back"})
	c.SetService("Braces")
	c.SetName("John")
	c.SetEmail("a@b.co")
	c.SetPhone("5551234567")
	assert.True(t, c.CanGenerateJSON())
}

func TestJSONData(t *testing.T) {
	c := newController(false, false)
	c.SetLeadType(models.LeadTypeOption{Value: "appointment", Text: "Arrange an appointment"})
	c.SetService("Teeth Whitening")
	c.SetName("Jane")
	c.SetEmail("jane@example.com")
	c.SetWorkflowAnswers([]workflow.Answer{{QuestionID: "q1", Question: "Sensitive?", Answer: "no", Order: 1}})

	p := c.JSONData(nil)
	assert.Equal(t, "appointment", p.LeadType)
	assert.Equal(t, "Arrange an appointment", p.Title)
	assert.Empty(t, p.LeadPhoneNumber)
	assert.Nil(t, p.History)
	require.Len(t, p.WorkflowAnswers, 1)

	p = c.JSONData([]models.Message{{Role: models.RoleUser, Content: "hi"}})
	assert.Len(t, p.History, 1)
}

func TestLeadTitleFallsBackToValue(t *testing.T) {
	c := newController(false, false)
	c.SetLeadType(models.LeadTypeOption{Value: "callback"})
	assert.Equal(t, "callback", c.Fields.Title)
}

func TestPromptContext(t *testing.T) {
	for _, s := range AllStates {
		assert.NotEmpty(t, s.PromptContext(), s)
	}
	assert.Equal(t, "Ask for the user's name.", StateNameCollection.PromptContext())
}
