// Package conversation drives one inbound message through a session: it loads or creates the
// session, asks the responder for a reply, performs the backend actions the reply requests
// (sending and verifying one-time codes, creating the lead) and persists the result.
//
// Channel adapters only translate their transport into Inbound values and send the returned
// messages back. No collaborator error escapes a turn; each one becomes a localized fallback.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BTreeMap/LeadPipe/internal/backend"
	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/i18n"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
	"github.com/BTreeMap/LeadPipe/internal/responder"
	"github.com/BTreeMap/LeadPipe/internal/session"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

// ErrMissingUserID is returned when an inbound message does not name the deployment it is for.
var ErrMissingUserID = errors.New("missing deployment user id")

// Backend is the CRM collaborator.
type Backend interface {
	FetchContext(ctx context.Context, userID string) (*models.Context, error)
	CreateLead(ctx context.Context, userID string, payload flow.LeadPayload) error
	SendEmailOTP(ctx context.Context, userID, email, name string) error
	VerifyEmailOTP(ctx context.Context, userID, email, code string) error
	SendSMSOTP(ctx context.Context, userID, phone string) error
	VerifySMSOTP(ctx context.Context, userID, phone, code string) error
}

// Generator produces replies for a session.
type Generator interface {
	Generate(ctx context.Context, s *session.Session, text string) responder.Reply
	Greeting(ctx context.Context, s *session.Session) responder.Reply
	Prompt(ctx context.Context, s *session.Session) string
}

// Inbound is one message from an end user.
type Inbound struct {
	// SessionID keys the conversation. Messaging channels use session.Key; streaming channels
	// use their connection id.
	SessionID string
	Channel   models.Channel
	// UserID is the deployment the message is addressed to.
	UserID string
	// Address is the deployment's channel address the message arrived on.
	Address string
	// Phone is the sender's number on channels that know it.
	Phone string
	Text  string
}

// Outcome is what the adapter sends back for one inbound message.
type Outcome struct {
	SessionID string
	Messages  []string
	// Done is set once the lead was submitted; streaming channels close the connection.
	Done bool
}

// Driver runs turns. It is safe for concurrent use; turns of the same session are serialized.
type Driver struct {
	generator Generator
	backend   Backend
	store     session.Store
	locks     *session.Locks
	outbox    store.OutboxRepo
	now       func() time.Time
}

// Opts configures a Driver.
type Opts struct {
	Outbox store.OutboxRepo
	Locks  *session.Locks
}

// Option configures a Driver.
type Option func(*Opts)

// WithOutbox queues leads whose creation failed for a background retry.
func WithOutbox(repo store.OutboxRepo) Option {
	return func(o *Opts) {
		o.Outbox = repo
	}
}

// WithLocks shares a lock table with other components that mutate sessions.
func WithLocks(l *session.Locks) Option {
	return func(o *Opts) {
		o.Locks = l
	}
}

// NewDriver creates a driver.
func NewDriver(gen Generator, be Backend, st session.Store, opts ...Option) *Driver {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Locks == nil {
		cfg.Locks = session.NewLocks()
	}
	return &Driver{
		generator: gen,
		backend:   be,
		store:     st,
		locks:     cfg.Locks,
		outbox:    cfg.Outbox,
		now:       time.Now,
	}
}

// Start opens a fresh session for in and returns the greeting. An existing session with the
// same id is replaced.
func (d *Driver) Start(ctx context.Context, in Inbound) (Outcome, error) {
	unlock := d.locks.Lock(in.SessionID)
	defer unlock()

	s, err := d.create(ctx, in)
	if err != nil {
		return d.failure(in), err
	}
	from := s.Flow.State
	reply := d.generator.Greeting(ctx, s)
	out := d.apply(ctx, s, from, reply)
	d.save(ctx, s)
	return out, nil
}

// Handle runs one turn for in. A missing or expired session is recreated, in which case the
// user is greeted first. The returned error is non-nil only when no session could be created;
// the outcome then carries the generic error message.
func (d *Driver) Handle(ctx context.Context, in Inbound) (Outcome, error) {
	start := d.now()
	ctx, span := observability.StartSpan(ctx, "conversation.Handle",
		attribute.String("channel", string(in.Channel)))
	defer span.End()

	unlock := d.locks.Lock(in.SessionID)
	defer unlock()

	s, err := d.store.Get(ctx, in.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("Driver.Handle: session load failed, starting over", "sessionID", in.SessionID, "error", err)
		}
		if s, err = d.create(ctx, in); err != nil {
			observability.RecordTurn(string(in.Channel), "error", d.now().Sub(start))
			return d.failure(in), err
		}
	}

	text := strings.TrimSpace(in.Text)
	s.AddMessage(models.RoleUser, text)
	from := s.Flow.State
	reply := d.generator.Generate(ctx, s, text)
	out := d.apply(ctx, s, from, reply)
	d.save(ctx, s)

	outcome := "ok"
	if out.Done {
		outcome = "submitted"
	}
	observability.RecordTurn(string(in.Channel), outcome, d.now().Sub(start))
	return out, nil
}

// End removes the session, e.g. when a streaming connection closes.
func (d *Driver) End(ctx context.Context, sessionID string) {
	unlock := d.locks.Lock(sessionID)
	defer unlock()
	if err := d.store.Delete(ctx, sessionID); err != nil {
		slog.Error("Driver.End: delete failed", "sessionID", sessionID, "error", err)
	}
}

func (d *Driver) create(ctx context.Context, in Inbound) (*session.Session, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ErrMissingUserID
	}
	c, err := d.backend.FetchContext(ctx, in.UserID)
	if err != nil {
		slog.Error("Driver.create: context fetch failed", "userID", in.UserID, "reason", errorsx.Reason(err), "error", err)
		return nil, fmt.Errorf("failed to load deployment context: %w", err)
	}
	s := session.New(in.SessionID, in.Channel, in.UserID, c, in.Phone)
	s.Address = in.Address
	slog.Info("Driver.create: session started", "sessionID", s.ID, "channel", in.Channel, "userID", in.UserID)
	return s, nil
}

func (d *Driver) save(ctx context.Context, s *session.Session) {
	s.Touch(d.now())
	if err := d.store.Put(ctx, s); err != nil {
		slog.Error("Driver.save: session not persisted", "sessionID", s.ID, "error", err)
	}
}

func (d *Driver) failure(in Inbound) Outcome {
	return Outcome{SessionID: in.SessionID, Messages: []string{i18n.String(i18n.GenericError, i18n.DefaultLanguage)}}
}

func language(s *session.Session) string {
	if s.Language == "" {
		return i18n.DefaultLanguage
	}
	return s.Language
}

// apply performs the action a reply requests and records the messages sent in the history.
func (d *Driver) apply(ctx context.Context, s *session.Session, from flow.State, reply responder.Reply) Outcome {
	out := Outcome{SessionID: s.ID}
	if reply.Text != "" {
		out.Messages = append(out.Messages, reply.Text)
	}

	var msg string
	switch reply.Kind {
	case responder.KindText:
	case responder.KindSendEmailOTP:
		msg = d.sendEmailOTP(ctx, s, reply)
	case responder.KindSendPhoneOTP:
		msg = d.sendPhoneOTP(ctx, s, reply)
	case responder.KindVerifyEmailOTP:
		msg, out.Done = d.verifyEmailOTP(ctx, s, reply.Value)
	case responder.KindVerifyPhoneOTP:
		msg, out.Done = d.verifyPhoneOTP(ctx, s, reply.Value)
	case responder.KindSubmit:
		msg = d.submit(ctx, s, reply.Lead)
		out.Done = true
	default:
		slog.Warn("Driver.apply: unknown reply kind", "sessionID", s.ID, "kind", reply.Kind)
		msg = d.generator.Prompt(ctx, s)
	}
	if msg != "" {
		out.Messages = append(out.Messages, msg)
	}
	if to := s.Flow.State; to != from {
		observability.RecordTransition(string(from), string(to))
	}
	for _, m := range out.Messages {
		s.AddMessage(models.RoleAssistant, m)
	}
	return out
}

// settle advances through the steps that are already satisfied.
func settle(c *flow.Controller) {
	for range flow.AllStates {
		if !c.Advance() {
			return
		}
	}
}

func (d *Driver) sendEmailOTP(ctx context.Context, s *session.Session, reply responder.Reply) string {
	lang := language(s)
	err := d.backend.SendEmailOTP(ctx, s.UserID, reply.Value, s.Flow.Fields.LeadName)
	if err != nil {
		observability.RecordOTP("email", "send", "failed")
		slog.Error("Driver.sendEmailOTP: send failed", "sessionID", s.ID, "reason", errorsx.Reason(err), "error", err)
		switch reply.Reason {
		case responder.OTPReasonResend:
			return i18n.String(i18n.OTPResendFailEmail, lang)
		case responder.OTPReasonChange:
			return i18n.String(i18n.FoundEmailCantSend, lang)
		}
		return i18n.String(i18n.OTPSendFailEmail, lang)
	}
	observability.RecordOTP("email", "send", "ok")
	if s.Flow.State == flow.StateEmailCollection {
		s.Flow.Advance()
	}
	s.Flow.MarkEmailSent()
	s.Flow.Advance()
	switch reply.Reason {
	case responder.OTPReasonResend:
		return i18n.String(i18n.OTPResend, lang, reply.Value)
	case responder.OTPReasonChange:
		return i18n.String(i18n.PerfectOTPSentEmail, lang, reply.Value)
	}
	return i18n.String(i18n.OTPSentEmail, lang, reply.Value)
}

func (d *Driver) sendPhoneOTP(ctx context.Context, s *session.Session, reply responder.Reply) string {
	lang := language(s)
	err := d.backend.SendSMSOTP(ctx, s.UserID, reply.Value)
	if err != nil {
		observability.RecordOTP("phone", "send", "failed")
		slog.Error("Driver.sendPhoneOTP: send failed", "sessionID", s.ID, "reason", errorsx.Reason(err), "error", err)
		switch reply.Reason {
		case responder.OTPReasonResend:
			return i18n.String(i18n.OTPResendFailPhone, lang)
		case responder.OTPReasonChange:
			return i18n.String(i18n.FoundPhoneCantSend, lang)
		}
		return i18n.String(i18n.OTPSendFailPhone, lang)
	}
	observability.RecordOTP("phone", "send", "ok")
	if s.Flow.State == flow.StatePhoneCollection {
		s.Flow.Advance()
	}
	s.Flow.MarkPhoneSent()
	s.Flow.Advance()
	switch reply.Reason {
	case responder.OTPReasonResend:
		return i18n.String(i18n.OTPResend, lang, reply.Value)
	case responder.OTPReasonChange:
		return i18n.String(i18n.PerfectOTPSentPhone, lang, reply.Value)
	}
	return i18n.String(i18n.OTPSentPhone, lang, reply.Value)
}

func (d *Driver) verifyEmailOTP(ctx context.Context, s *session.Session, code string) (string, bool) {
	lang := language(s)
	if err := d.backend.VerifyEmailOTP(ctx, s.UserID, s.Flow.Fields.LeadEmail, code); err != nil {
		if rejected(err) {
			observability.RecordOTP("email", "verify", "rejected")
			return i18n.String(i18n.OTPWrongCode, lang), false
		}
		observability.RecordOTP("email", "verify", "failed")
		slog.Error("Driver.verifyEmailOTP: verify failed", "sessionID", s.ID, "reason", errorsx.Reason(err), "error", err)
		return i18n.String(i18n.OTPVerifyFailEmail, lang), false
	}
	observability.RecordOTP("email", "verify", "ok")
	s.Flow.MarkEmailVerified()
	return d.afterVerification(ctx, s)
}

func (d *Driver) verifyPhoneOTP(ctx context.Context, s *session.Session, code string) (string, bool) {
	lang := language(s)
	if err := d.backend.VerifySMSOTP(ctx, s.UserID, s.Flow.Fields.LeadPhoneNumber, code); err != nil {
		if rejected(err) {
			observability.RecordOTP("phone", "verify", "rejected")
			return i18n.String(i18n.OTPWrongCode, lang), false
		}
		observability.RecordOTP("phone", "verify", "failed")
		slog.Error("Driver.verifyPhoneOTP: verify failed", "sessionID", s.ID, "reason", errorsx.Reason(err), "error", err)
		return i18n.String(i18n.OTPVerifyFailPhone, lang), false
	}
	observability.RecordOTP("phone", "verify", "ok")
	s.Flow.MarkPhoneVerified()
	return d.afterVerification(ctx, s)
}

// afterVerification moves past the verified step and either submits the lead or asks for the
// next field.
func (d *Driver) afterVerification(ctx context.Context, s *session.Session) (string, bool) {
	settle(s.Flow)
	if s.Flow.CanGenerateJSON() {
		payload := s.Flow.JSONData(s.History)
		return d.submit(ctx, s, &payload), true
	}
	return d.generator.Prompt(ctx, s), false
}

// rejected reports whether the backend refused the code itself rather than failing.
func rejected(err error) bool {
	var se *backend.StatusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}

// submit creates the lead. A failed creation still completes the conversation: the payload is
// queued for retry when an outbox is configured and the user gets the fallback message.
func (d *Driver) submit(ctx context.Context, s *session.Session, lead *flow.LeadPayload) string {
	lang := language(s)
	if lead == nil {
		payload := s.Flow.JSONData(s.History)
		lead = &payload
	}
	s.Flow.TransitionTo(flow.StateComplete)
	s.Done = true

	if err := d.backend.CreateLead(ctx, s.UserID, *lead); err != nil {
		observability.RecordLead(string(s.Channel), "failed")
		slog.Error("Driver.submit: lead creation failed", "sessionID", s.ID, "reason", errorsx.Reason(err), "error", err)
		if d.outbox != nil {
			if id, qerr := store.EnqueueLead(ctx, d.outbox, s.ID, s.UserID, *lead); qerr != nil {
				slog.Error("Driver.submit: lead not queued", "sessionID", s.ID, "error", qerr)
			} else {
				slog.Info("Driver.submit: lead queued for retry", "sessionID", s.ID, "outboxID", id)
			}
		}
		return i18n.String(i18n.FinalFallback, lang)
	}
	observability.RecordLead(string(s.Channel), "created")
	slog.Info("Driver.submit: lead created", "sessionID", s.ID, "userID", s.UserID)

	msg := i18n.String(i18n.FinalSuccess, lang)
	if s.Context != nil && s.Context.Integration.ReviewLink != "" {
		msg += "\n\n" + i18n.String(i18n.ReviewPrompt, lang, s.Context.Integration.ReviewLink)
	}
	return msg
}
