// Package flow holds the lead-collection state machine: the step enum, the fields collected so far,
// the one-time-code verification flags, and the rules for moving between steps.
package flow

// State is one step of the lead-collection conversation.
type State string

const (
	StateGreeting             State = "GREETING"
	StateLeadTypeSelection    State = "LEAD_TYPE_SELECTION"
	StateServiceSelection     State = "SERVICE_SELECTION"
	StateWorkflowQuestion     State = "WORKFLOW_QUESTION"
	StateNameCollection       State = "NAME_COLLECTION"
	StateEmailCollection      State = "EMAIL_COLLECTION"
	StateEmailOTPSent         State = "EMAIL_OTP_SENT"
	StateEmailOTPVerification State = "EMAIL_OTP_VERIFICATION"
	StatePhoneCollection      State = "PHONE_COLLECTION"
	StatePhoneOTPSent         State = "PHONE_OTP_SENT"
	StatePhoneOTPVerification State = "PHONE_OTP_VERIFICATION"
	StateComplete             State = "COMPLETE"
)

// AllStates lists every state in flow order.
var AllStates = []State{
	StateGreeting,
	StateLeadTypeSelection,
	StateServiceSelection,
	StateWorkflowQuestion,
	StateNameCollection,
	StateEmailCollection,
	StateEmailOTPSent,
	StateEmailOTPVerification,
	StatePhoneCollection,
	StatePhoneOTPSent,
	StatePhoneOTPVerification,
	StateComplete,
}

var stateRank = func() map[State]int {
	m := make(map[State]int, len(AllStates))
	for i, s := range AllStates {
		m[s] = i
	}
	return m
}()

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	_, ok := stateRank[s]
	return ok
}

// Before reports whether s comes earlier in the flow than other.
func (s State) Before(other State) bool {
	return stateRank[s] < stateRank[other]
}

// IsOTPVerification reports whether the step expects a one-time code.
func (s State) IsOTPVerification() bool {
	return s == StateEmailOTPVerification || s == StatePhoneOTPVerification
}

// otpPair returns the collection step that owns an OTP sub-step, or "" for other states.
func (s State) otpPair() State {
	switch s {
	case StateEmailOTPSent, StateEmailOTPVerification:
		return StateEmailCollection
	case StatePhoneOTPSent, StatePhoneOTPVerification:
		return StatePhoneCollection
	}
	return ""
}

// PromptContext returns a short description of what the assistant should do in this state.
// It is used as the retrieval query and as guidance for generated replies.
func (s State) PromptContext() string {
	switch s {
	case StateGreeting:
		return "Greet the user and present lead type options."
	case StateLeadTypeSelection:
		return "Present lead type options and wait for selection."
	case StateServiceSelection:
		return "Present service options and wait for selection."
	case StateWorkflowQuestion:
		return "Ask the current service question and wait for an answer."
	case StateNameCollection:
		return "Ask for the user's name."
	case StateEmailCollection:
		return "Ask for the user's email address."
	case StateEmailOTPSent, StatePhoneOTPSent:
		return "Acknowledge OTP sent and wait for verification code."
	case StateEmailOTPVerification, StatePhoneOTPVerification:
		return "Verify the OTP code provided."
	case StatePhoneCollection:
		return "Ask for the user's phone number."
	case StateComplete:
		return "All information collected."
	}
	return "Continue conversation naturally."
}
