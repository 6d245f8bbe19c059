// Package responder produces the assistant's reply for one conversation turn.
//
// Each flow state has a handler in a lookup table. Handlers run the deterministic extractors
// first, mutate the session only after a match, and return a tagged Reply: plain text, or an
// action (send or verify a one-time code, submit the lead) that the conversation driver carries
// out. LLM calls only classify intent, answer side questions and phrase re-prompts.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BTreeMap/LeadPipe/internal/cache"
	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/i18n"
	"github.com/BTreeMap/LeadPipe/internal/intent"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
	"github.com/BTreeMap/LeadPipe/internal/render"
	"github.com/BTreeMap/LeadPipe/internal/session"
	"github.com/BTreeMap/LeadPipe/internal/validate"
	"github.com/BTreeMap/LeadPipe/internal/workflow"
)

// Classifier classifies user messages.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) intent.Intent
	ClassifyOTPIntent(ctx context.Context, text string, history []models.Message, pending intent.Contacts) intent.OTPIntent
}

// Answerer writes LLM replies grounded on the deployment context.
type Answerer interface {
	AnswerWithContext(ctx context.Context, query string, c *models.Context, history []models.Message) (string, error)
	Compose(ctx context.Context, instructions, query string, c *models.Context, history []models.Message) (string, error)
	ShortReply(ctx context.Context, c *models.Context, history []models.Message, message string) string
}

// Translator localizes fixed prompts and option labels and translates user input for matching.
type Translator interface {
	TranslateBatch(ctx context.Context, appID, lang string, texts []string) []string
	ToEnglish(ctx context.Context, appID, text string) string
}

// Fixed prompts. They are translated when the session language is not English.
const (
	promptLeadType       = "How can I help you today?"
	promptService        = "Which service are you interested in?"
	promptName           = "Great! May I have your full name, please?"
	promptEmail          = "Thanks! What's the best email address to reach you?"
	promptEmailWithName  = "Thanks, %s! What's the best email address to reach you?"
	promptPhone          = "What's the best phone number to reach you?"
	fallbackConversation = "I'm here to help you. How can I assist you today?"
	minLanguageWords     = 3
)

var nameIntro = regexp.MustCompile(`(?i)^\s*(my name is|my name's|name is|i am|i'm|this is|it's|it is|call me)\s+`)

type handler func(ctx context.Context, t *turn) Reply

// Responder generates replies. It is safe for concurrent use across sessions.
type Responder struct {
	classifier     Classifier
	answerer       Answerer
	translator     Translator
	cache          *cache.Cache
	attachmentBase string
	handlers       map[flow.State]handler
}

// Opts holds configuration for the responder.
type Opts struct {
	Translator     Translator
	Cache          *cache.Cache
	AttachmentBase string
}

// Option configures the responder.
type Option func(*Opts)

// WithTranslator localizes prompts for non-English sessions.
func WithTranslator(t Translator) Option {
	return func(o *Opts) { o.Translator = t }
}

// WithCache caches rendered greetings.
func WithCache(c *cache.Cache) Option {
	return func(o *Opts) { o.Cache = c }
}

// WithAttachmentBase sets the API base (".../api/v1") used to build workflow attachment URLs.
func WithAttachmentBase(base string) Option {
	return func(o *Opts) { o.AttachmentBase = base }
}

// New creates a responder.
func New(classifier Classifier, answerer Answerer, opts ...Option) *Responder {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New(0)
	}
	r := &Responder{
		classifier:     classifier,
		answerer:       answerer,
		translator:     cfg.Translator,
		cache:          cfg.Cache,
		attachmentBase: cfg.AttachmentBase,
	}
	r.handlers = map[flow.State]handler{
		flow.StateGreeting:             r.handleGreeting,
		flow.StateLeadTypeSelection:    r.handleLeadType,
		flow.StateServiceSelection:     r.handleService,
		flow.StateWorkflowQuestion:     r.handleWorkflow,
		flow.StateNameCollection:       r.handleName,
		flow.StateEmailCollection:      r.handleEmail,
		flow.StateEmailOTPSent:         r.handleOTP,
		flow.StateEmailOTPVerification: r.handleOTP,
		flow.StatePhoneCollection:      r.handlePhone,
		flow.StatePhoneOTPSent:         r.handleOTP,
		flow.StatePhoneOTPVerification: r.handleOTP,
		flow.StateComplete:             r.handleComplete,
	}
	return r
}

// turn carries one inbound message through a handler.
type turn struct {
	s        *session.Session
	text     string
	english  string
	intent   intent.Intent
	answered bool
	answer   string
}

// Generate produces the reply to text. It never fails: collaborator errors degrade to
// deterministic prompts. The session is mutated in place; the caller persists it.
func (r *Responder) Generate(ctx context.Context, s *session.Session, text string) Reply {
	ctx, span := observability.StartSpan(ctx, "responder.Generate",
		attribute.String("state", string(s.Flow.State)),
		attribute.String("channel", string(s.Channel)))
	defer span.End()

	text = strings.TrimSpace(text)
	r.recordLanguage(s, text)
	if !s.Greeted {
		return r.Greeting(ctx, s)
	}
	t := &turn{s: s, text: text, english: text}
	if text == "" {
		return Text(r.Prompt(ctx, s))
	}
	if s.Language != "" && s.Language != i18n.DefaultLanguage && r.translator != nil {
		t.english = r.translator.ToEnglish(ctx, s.Context.CacheAppID(), text)
	}

	h, ok := r.handlers[s.Flow.State]
	if !ok {
		slog.Warn("Responder.Generate: no handler for state", "state", s.Flow.State)
		return Text(r.Prompt(ctx, s))
	}
	if !awaitingCode(s.Flow.State) && r.classifier != nil {
		t.intent = r.classifier.ClassifyIntent(ctx, t.english)
	}
	reply := h(ctx, t)
	slog.Debug("Responder.Generate: reply ready", "sessionID", s.ID, "state", s.Flow.State, "kind", reply.Kind)
	return reply
}

// awaitingCode reports whether a one-time code is pending in state. Those turns are classified
// with the OTP intent instead.
func awaitingCode(state flow.State) bool {
	switch state {
	case flow.StateEmailOTPSent, flow.StateEmailOTPVerification, flow.StatePhoneOTPSent, flow.StatePhoneOTPVerification:
		return true
	}
	return false
}

// recordLanguage stores the language of the first detectable message.
func (r *Responder) recordLanguage(s *session.Session, text string) {
	if s.Language != "" || text == "" {
		return
	}
	lang := i18n.DetectLanguage(text)
	if lang != i18n.DefaultLanguage || len(strings.Fields(text)) >= minLanguageWords {
		s.Language = lang
		slog.Debug("Responder.recordLanguage: session language set", "sessionID", s.ID, "language", lang)
	}
}

func lang(s *session.Session) string {
	if s.Language == "" {
		return i18n.DefaultLanguage
	}
	return s.Language
}

// localize translates texts into the session language.
func (r *Responder) localize(ctx context.Context, s *session.Session, texts ...string) []string {
	l := lang(s)
	if r.translator == nil || l == i18n.DefaultLanguage {
		return texts
	}
	return r.translator.TranslateBatch(ctx, s.Context.CacheAppID(), l, texts)
}

// withOptions renders a localized header followed by localized options for the session's channel.
func (r *Responder) withOptions(ctx context.Context, s *session.Session, header string, opts []render.Option) string {
	texts := make([]string, 0, len(opts)+1)
	texts = append(texts, header)
	for _, o := range opts {
		texts = append(texts, o.Label)
	}
	localized := r.localize(ctx, s, texts...)
	for i := range opts {
		opts[i].Label = localized[i+1]
	}
	return render.WithOptions(render.StyleFor(s.Channel), localized[0], opts)
}

// Greeting renders the greeting with the lead-type options and moves the session to lead-type
// selection. A session that was already greeted gets the options without the greeting.
func (r *Responder) Greeting(ctx context.Context, s *session.Session) Reply {
	if s.Greeted {
		return Text(r.Prompt(ctx, s))
	}
	s.Greeted = true
	s.Flow.Advance()

	l := lang(s)
	key := cache.GreetingKey(s.Context.CacheAppID(), fmt.Sprintf("%s:%d", l, render.StyleFor(s.Channel)))
	if v, ok := r.cache.GetString(key); ok {
		return Text(v)
	}
	var in models.Integration
	var leadTypes []models.LeadTypeOption
	if s.Context != nil {
		in = s.Context.Integration
		leadTypes = s.Context.LeadTypes
	}
	text := r.withOptions(ctx, s, GreetingText(in), render.LeadTypeOptions(leadTypes))
	r.cache.Set(key, text, cache.GreetingTTL)
	return Text(text)
}

// Prompt renders the request for the current state's missing information.
func (r *Responder) Prompt(ctx context.Context, s *session.Session) string {
	c := s.Context
	switch s.Flow.State {
	case flow.StateGreeting, flow.StateLeadTypeSelection:
		var lts []models.LeadTypeOption
		if c != nil {
			lts = c.LeadTypes
		}
		return r.withOptions(ctx, s, promptLeadType, render.LeadTypeOptions(lts))
	case flow.StateServiceSelection:
		return r.withOptions(ctx, s, promptService, render.Labels(c.AllServiceNames()...))
	case flow.StateWorkflowQuestion:
		return r.workflowPrompt(ctx, s)
	case flow.StateNameCollection:
		return r.localize(ctx, s, promptName)[0]
	case flow.StateEmailCollection:
		if name := s.Flow.Fields.LeadName; name != "" {
			return r.localize(ctx, s, fmt.Sprintf(promptEmailWithName, name))[0]
		}
		return r.localize(ctx, s, promptEmail)[0]
	case flow.StatePhoneCollection:
		return r.localize(ctx, s, promptPhone)[0]
	case flow.StateComplete:
		return i18n.String(i18n.FinalSuccess, lang(s))
	}
	if awaitingCode(s.Flow.State) {
		return i18n.String(i18n.OTPPleaseEnter, lang(s))
	}
	return fallbackConversation
}

func (r *Responder) workflowPrompt(ctx context.Context, s *session.Session) string {
	q, ok := s.Workflow.CurrentQuestion()
	if !ok {
		return r.localize(ctx, s, promptName)[0]
	}
	header := q.Question
	text := r.withOptions(ctx, s, header, render.Labels(s.Workflow.CurrentOptions()...))
	if url, name, ok := s.Workflow.AttachmentURL(r.attachmentBase); ok {
		marker := workflow.FileMarker(url, name)
		localizedHeader := r.localize(ctx, s, header)[0]
		text = strings.Replace(text, localizedHeader, localizedHeader+"\n\n"+marker, 1)
	}
	return text
}

// answer returns the reply to a side question in this turn, or "" when there is none.
// The answer is computed at most once per turn.
func (r *Responder) answer(ctx context.Context, t *turn) string {
	if t.answered {
		return t.answer
	}
	t.answered = true
	if !t.intent.IsQuestion || r.answerer == nil {
		return ""
	}
	ans, err := r.answerer.AnswerWithContext(ctx, t.text, t.s.Context, t.s.History)
	if err != nil {
		slog.Warn("Responder.answer: side question not answered", "sessionID", t.s.ID, "error", err)
		return ""
	}
	t.answer = render.StripOptionLists(ans)
	return t.answer
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return strings.Join(out, "\n\n")
}

// progress is called after a field was recorded and the state advanced: it submits the lead
// when everything is collected, else prompts for the new state, preceded by any side answer.
func (r *Responder) progress(ctx context.Context, t *turn) Reply {
	if t.s.Flow.CanGenerateJSON() {
		return r.submit(ctx, t)
	}
	return Text(join(r.answer(ctx, t), r.Prompt(ctx, t.s)))
}

func (r *Responder) submit(ctx context.Context, t *turn) Reply {
	payload := t.s.Flow.JSONData(t.s.History)
	return Reply{Kind: KindSubmit, Text: r.answer(ctx, t), Lead: &payload}
}

// miss handles a message that did not satisfy the current step: a question is answered and the
// step re-prompted; anything else gets a generated nudge back to the step.
func (r *Responder) miss(ctx context.Context, t *turn) Reply {
	prompt := r.Prompt(ctx, t.s)
	if ans := r.answer(ctx, t); ans != "" {
		return Text(join(ans, prompt))
	}
	if r.answerer == nil || utf8.RuneCountInString(t.text) < 2 {
		return Text(prompt)
	}
	composed, err := r.answerer.Compose(ctx, r.instructions(t.s), t.text, t.s.Context, t.s.History)
	if err != nil || strings.TrimSpace(composed) == "" {
		return Text(prompt)
	}
	switch t.s.Flow.State {
	case flow.StateLeadTypeSelection, flow.StateServiceSelection, flow.StateWorkflowQuestion:
		// Options are always the canonical list, never the model's rendition.
		return Text(join(render.StripOptionLists(composed), prompt))
	}
	return Text(composed)
}

// instructions is the system prompt used to phrase a re-prompt for the current state.
func (r *Responder) instructions(s *session.Session) string {
	profession := s.Context.ProfessionOrDefault()
	var base string
	switch s.Flow.State {
	case flow.StateLeadTypeSelection:
		base = "Briefly acknowledge the user's message and ask which of the options they would like. Do not list the options."
	case flow.StateServiceSelection:
		base = "Briefly acknowledge the user's message and ask which service they are interested in. Do not list the services. DO NOT ask for date/time or any other information."
	case flow.StateWorkflowQuestion:
		base = "Briefly acknowledge the user's message and ask them to answer the current question. Do not list options."
	case flow.StateNameCollection:
		base = "Ask for the user's name naturally. DO NOT ask for date/time or other information."
	case flow.StateEmailCollection:
		base = "Ask for the user's email address naturally. DO NOT ask for date/time or other information."
	case flow.StatePhoneCollection:
		base = "Ask for the user's phone number naturally. DO NOT ask for date/time or other information."
	case flow.StateEmailOTPSent, flow.StateEmailOTPVerification, flow.StatePhoneOTPSent, flow.StatePhoneOTPVerification:
		base = "Ask the user to enter the 6-digit verification code that was sent to them."
	default:
		base = "Continue the conversation naturally."
	}
	prompt := fmt.Sprintf("You are a %s assistant. %s Keep it to one or two sentences.", profession, base)
	if name := i18n.PromptLanguageName(lang(s)); name != "" {
		prompt += " Respond in " + name + "."
	}
	return prompt
}

// numbered resolves a bare number against n options on channels that show numbered lists.
func numbered(s *session.Session, text string, n int) (int, bool) {
	if !s.Channel.UsesNumberedLists() {
		return 0, false
	}
	return extract.ChoiceNumber(text, n)
}

func (r *Responder) handleGreeting(ctx context.Context, t *turn) Reply {
	t.s.Greeted = false
	return r.Greeting(ctx, t.s)
}

func (r *Responder) handleLeadType(ctx context.Context, t *turn) Reply {
	c := t.s.Context
	if c == nil || len(c.LeadTypes) == 0 {
		return r.miss(ctx, t)
	}
	var opt models.LeadTypeOption
	found := false
	if idx, ok := numbered(t.s, t.text, len(c.LeadTypes)); ok {
		opt, found = c.LeadTypes[idx], true
	} else if m, ok := extract.MatchLeadType(t.text, c.LeadTypes); ok {
		opt, found = m.Option, true
	} else if t.english != t.text {
		if m, ok := extract.MatchLeadType(t.english, c.LeadTypes); ok {
			opt, found = m.Option, true
		}
	}
	if !found {
		return r.miss(ctx, t)
	}
	t.s.Flow.SetLeadType(opt)
	t.s.Flow.Advance()
	return r.progress(ctx, t)
}

func (r *Responder) handleService(ctx context.Context, t *turn) Reply {
	services := t.s.Context.AllServiceNames()
	if len(services) == 0 {
		return r.miss(ctx, t)
	}
	name := ""
	if idx, ok := numbered(t.s, t.text, len(services)); ok {
		name = services[idx]
	} else if m, ok := extract.MatchService(t.text, services); ok {
		name = m.Name
	} else if t.english != t.text {
		if m, ok := extract.MatchService(t.english, services); ok {
			name = m.Name
		}
	}
	if name == "" {
		return r.miss(ctx, t)
	}
	t.s.Flow.SetService(name)
	if t.s.Workflow.StartForService(t.s.Context, name) {
		t.s.Flow.TransitionTo(flow.StateWorkflowQuestion)
		return Text(join(r.answer(ctx, t), r.Prompt(ctx, t.s)))
	}
	t.s.Flow.Advance()
	return r.progress(ctx, t)
}

func (r *Responder) handleWorkflow(ctx context.Context, t *turn) Reply {
	if _, ok := t.s.Workflow.CurrentQuestion(); !ok {
		return r.finishWorkflow(ctx, t)
	}
	answer := t.text
	opts := t.s.Workflow.CurrentOptions()
	if len(opts) > 0 {
		if idx, ok := numbered(t.s, t.text, len(opts)); ok {
			answer = opts[idx]
		} else if o, ok := extract.MatchOption(t.text, opts); ok {
			answer = o
		} else if o, ok := extract.MatchOption(t.english, opts); ok {
			answer = o
		} else if t.intent.IsQuestion {
			return r.miss(ctx, t)
		}
	} else if t.intent.IsQuestion && !strings.ContainsAny(t.text, "0123456789") && len(strings.Fields(t.text)) > 3 {
		return r.miss(ctx, t)
	}
	if t.s.Workflow.RecordAnswer(answer) {
		return Text(join(r.answer(ctx, t), r.Prompt(ctx, t.s)))
	}
	return r.finishWorkflow(ctx, t)
}

func (r *Responder) finishWorkflow(ctx context.Context, t *turn) Reply {
	t.s.Flow.SetWorkflowAnswers(t.s.Workflow.AnswersCopy())
	t.s.Workflow.Reset()
	if !t.s.Flow.Advance() {
		t.s.Flow.TransitionTo(flow.StateNameCollection)
	}
	return r.progress(ctx, t)
}

func (r *Responder) handleName(ctx context.Context, t *turn) Reply {
	var lts []models.LeadTypeOption
	if t.s.Context != nil {
		lts = t.s.Context.LeadTypes
	}
	name, ok := extract.Name(strings.TrimRight(nameIntro.ReplaceAllString(t.text, ""), ".!"), lts)
	if !ok || !validate.IsValidName(name) {
		return r.miss(ctx, t)
	}
	t.s.Flow.SetName(name)
	t.s.Flow.Advance()
	return r.progress(ctx, t)
}

func (r *Responder) handleEmail(ctx context.Context, t *turn) Reply {
	email, ok := extract.Email(t.text)
	if !ok || !validate.IsValidEmail(email) {
		return r.miss(ctx, t)
	}
	t.s.Flow.SetEmail(email)
	if t.s.Flow.ValidateEmail {
		return Reply{Kind: KindSendEmailOTP, Text: r.answer(ctx, t), Value: email, Reason: OTPReasonNew}
	}
	t.s.Flow.Advance()
	return r.progress(ctx, t)
}

func (r *Responder) handlePhone(ctx context.Context, t *turn) Reply {
	if t.s.Flow.SkipPhone {
		t.s.Flow.Advance()
		return r.progress(ctx, t)
	}
	phone, ok := extract.Phone(t.text)
	if !ok || !validate.IsValidPhone(phone) {
		return r.miss(ctx, t)
	}
	phone = validate.NormalizePhone(phone)
	t.s.Flow.SetPhone(phone)
	if t.s.Flow.ValidatePhone {
		return Reply{Kind: KindSendPhoneOTP, Text: r.answer(ctx, t), Value: phone, Reason: OTPReasonNew}
	}
	t.s.Flow.Advance()
	return r.progress(ctx, t)
}

// handleOTP runs while a code is pending. A valid code is verified; otherwise the OTP intent
// decides between changing the contact, resending and re-prompting.
func (r *Responder) handleOTP(ctx context.Context, t *turn) Reply {
	s := t.s
	isEmail := s.Flow.State == flow.StateEmailOTPSent || s.Flow.State == flow.StateEmailOTPVerification
	sent := s.Flow.OTP.PhoneSent
	if isEmail {
		sent = s.Flow.OTP.EmailSent
	}
	if code, ok := extract.OTPCode(t.text); ok && validate.IsValidOTP(code) && sent {
		if isEmail {
			return Reply{Kind: KindVerifyEmailOTP, Value: code}
		}
		return Reply{Kind: KindVerifyPhoneOTP, Value: code}
	}

	pending := intent.Contacts{Phone: s.Flow.Fields.LeadPhoneNumber}
	if isEmail {
		pending = intent.Contacts{Email: s.Flow.Fields.LeadEmail}
	}
	oi := intent.OTPIntent{Kind: intent.OTPOther}
	if r.classifier != nil {
		oi = r.classifier.ClassifyOTPIntent(ctx, t.text, s.History, pending)
	}
	l := lang(s)
	switch {
	case oi.Kind == intent.OTPChangeEmail && isEmail:
		if !validate.IsValidEmail(oi.ExtractedEmail) {
			return Text(i18n.String(i18n.NoProblemEmail, l))
		}
		s.Flow.ChangeEmail(oi.ExtractedEmail)
		return Reply{Kind: KindSendEmailOTP, Value: oi.ExtractedEmail, Reason: OTPReasonChange}
	case oi.Kind == intent.OTPChangePhone && !isEmail:
		if !validate.IsValidPhone(oi.ExtractedPhone) {
			return Text(i18n.String(i18n.NoProblemPhone, l))
		}
		phone := validate.NormalizePhone(oi.ExtractedPhone)
		s.Flow.ChangePhone(phone)
		return Reply{Kind: KindSendPhoneOTP, Value: phone, Reason: OTPReasonChange}
	case oi.Kind == intent.OTPResend || !sent:
		if isEmail {
			if s.Flow.Fields.LeadEmail == "" {
				return Text(i18n.String(i18n.NoEmail, l))
			}
			return Reply{Kind: KindSendEmailOTP, Value: s.Flow.Fields.LeadEmail, Reason: OTPReasonResend}
		}
		if s.Flow.Fields.LeadPhoneNumber == "" {
			return Text(i18n.String(i18n.NoPhone, l))
		}
		return Reply{Kind: KindSendPhoneOTP, Value: s.Flow.Fields.LeadPhoneNumber, Reason: OTPReasonResend}
	case oi.Kind == intent.OTPEnter:
		return Text(i18n.String(i18n.OTPWrongCode, l))
	}

	if r.classifier != nil {
		t.intent = r.classifier.ClassifyIntent(ctx, t.english)
	}
	return r.miss(ctx, t)
}

func (r *Responder) handleComplete(ctx context.Context, t *turn) Reply {
	if r.answerer == nil {
		return Text(i18n.String(i18n.FinalSuccess, lang(t.s)))
	}
	return Text(r.answerer.ShortReply(ctx, t.s.Context, t.s.History, t.text))
}
