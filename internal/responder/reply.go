package responder

import "github.com/BTreeMap/LeadPipe/internal/flow"

// Kind tags what a Reply asks the caller to do.
type Kind string

const (
	// KindText is a conversational reply to send as-is.
	KindText Kind = "text"
	// KindSendEmailOTP asks the caller to send a code to Value by email.
	KindSendEmailOTP Kind = "send_email_otp"
	// KindSendPhoneOTP asks the caller to send a code to Value by SMS.
	KindSendPhoneOTP Kind = "send_phone_otp"
	// KindVerifyEmailOTP asks the caller to verify code Value for the session's email.
	KindVerifyEmailOTP Kind = "verify_email_otp"
	// KindVerifyPhoneOTP asks the caller to verify code Value for the session's phone.
	KindVerifyPhoneOTP Kind = "verify_phone_otp"
	// KindSubmit asks the caller to create the lead in Lead.
	KindSubmit Kind = "submit"
)

// OTPReason says why a code is being sent; it selects the confirmation wording.
type OTPReason string

const (
	OTPReasonNew    OTPReason = "new"
	OTPReasonChange OTPReason = "change"
	OTPReasonResend OTPReason = "resend"
)

// Reply is the result of one turn. For action kinds, Text holds an answer to a side question
// that must be sent before the action's own confirmation.
type Reply struct {
	Kind   Kind
	Text   string
	Value  string
	Reason OTPReason
	Lead   *flow.LeadPayload
}

// Text builds a conversational reply.
func Text(s string) Reply {
	return Reply{Kind: KindText, Text: s}
}

// IsAction reports whether the caller must act on the reply before answering the user.
func (r Reply) IsAction() bool {
	return r.Kind != KindText
}
