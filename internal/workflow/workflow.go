// Package workflow walks the question graphs that a deployment attaches to individual services.
//
// An Engine is scoped to one session. It snapshots the workflow when started and is never
// re-queried afterwards. Questions are asked in ascending order; an answer that selects an
// option with a next question splices that question in immediately, and a terminal option
// ends the workflow.
package workflow

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Answer is a recorded answer to one workflow question.
type Answer struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Order      int    `json:"order"`
}

// Engine holds the traversal state of one workflow. The zero value is an idle engine.
// Fields are exported so a session can be persisted and restored.
type Engine struct {
	WorkflowID string                    `json:"workflowId,omitempty"`
	Service    string                    `json:"service,omitempty"`
	AppID      string                    `json:"appId,omitempty"`
	Questions  []models.WorkflowQuestion `json:"questions,omitempty"`
	Queue      []models.WorkflowQuestion `json:"queue,omitempty"`
	Cursor     int                       `json:"cursor"`
	Answers    []Answer                  `json:"answers,omitempty"`
	Active     bool                      `json:"active"`
}

// StartForService looks up the first workflow attached to service and queues its active
// questions. It returns false, leaving the engine idle, when there is nothing to ask.
func (e *Engine) StartForService(ctx *models.Context, service string) bool {
	e.Reset()
	tp, ok := ctx.TreatmentPlanFor(service)
	if !ok || len(tp.AttachedWorkflows) == 0 {
		slog.Debug("Engine.StartForService: no attached workflow", "service", service)
		return false
	}
	wf, ok := ctx.WorkflowByID(tp.AttachedWorkflows[0].WorkflowID)
	if !ok {
		slog.Debug("Engine.StartForService: workflow not found", "service", service, "workflowID", tp.AttachedWorkflows[0].WorkflowID)
		return false
	}

	queue := initialQueue(wf.Questions)
	if len(queue) == 0 {
		slog.Debug("Engine.StartForService: workflow has no active questions", "workflowID", wf.ID)
		return false
	}

	e.WorkflowID = wf.ID
	e.Service = service
	e.AppID = ctx.AppIDFor(wf)
	e.Questions = append([]models.WorkflowQuestion(nil), wf.Questions...)
	e.Queue = queue
	e.Active = true
	slog.Info("Engine.StartForService: workflow started", "workflowID", wf.ID, "service", service, "questions", len(queue))
	return true
}

// initialQueue returns the active questions sorted by order. When the graph marks
// root questions explicitly, only the active roots are queued; the rest are reached by branching.
func initialQueue(all []models.WorkflowQuestion) []models.WorkflowQuestion {
	var active, roots []models.WorkflowQuestion
	for _, q := range all {
		if !q.IsActive {
			continue
		}
		active = append(active, q)
		if q.IsRoot {
			roots = append(roots, q)
		}
	}
	queue := active
	if len(roots) > 0 {
		queue = roots
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Order < queue[j].Order })
	return queue
}

// CurrentQuestion returns the question at the cursor.
func (e *Engine) CurrentQuestion() (models.WorkflowQuestion, bool) {
	if !e.Active || e.Cursor >= len(e.Queue) {
		return models.WorkflowQuestion{}, false
	}
	return e.Queue[e.Cursor], true
}

// RecordAnswer stores the answer to the current question and advances by one question.
// It reports whether a further question remains.
func (e *Engine) RecordAnswer(text string) bool {
	q, ok := e.CurrentQuestion()
	if !ok {
		return false
	}
	answer := Answer{QuestionID: q.ID, Question: q.Question, Answer: strings.TrimSpace(text), Order: q.Order}
	e.storeAnswer(answer)

	if opt, ok := selectedOption(q, text); ok {
		switch {
		case opt.IsTerminal:
			slog.Debug("Engine.RecordAnswer: terminal option selected", "questionID", q.ID)
			e.Cursor = len(e.Queue)
			return false
		case opt.NextQuestionID != "":
			e.branchTo(opt.NextQuestionID)
		}
	}
	e.Cursor++
	return e.Cursor < len(e.Queue)
}

func (e *Engine) storeAnswer(a Answer) {
	for i := range e.Answers {
		if e.Answers[i].QuestionID == a.QuestionID {
			e.Answers[i] = a
			return
		}
	}
	e.Answers = append(e.Answers, a)
}

// selectedOption finds the option whose text equals the answer, ignoring case.
func selectedOption(q models.WorkflowQuestion, text string) (models.WorkflowOption, bool) {
	answer := strings.ToLower(strings.TrimSpace(text))
	for _, opt := range q.Options {
		if strings.ToLower(strings.TrimSpace(opt.Text)) == answer && answer != "" {
			return opt, true
		}
	}
	return models.WorkflowOption{}, false
}

// branchTo places the target question immediately after the cursor. A later queued copy
// is removed; questions already answered are not asked again.
func (e *Engine) branchTo(id string) {
	target, ok := e.findQuestion(id)
	if !ok || !target.IsActive || e.answered(id) {
		slog.Debug("Engine.branchTo: branch target skipped", "target", id, "found", ok)
		return
	}
	rest := make([]models.WorkflowQuestion, 0, len(e.Queue)-e.Cursor)
	rest = append(rest, target)
	for _, q := range e.Queue[e.Cursor+1:] {
		if q.ID != id {
			rest = append(rest, q)
		}
	}
	e.Queue = append(e.Queue[:e.Cursor+1:e.Cursor+1], rest...)
	slog.Debug("Engine.branchTo: branched", "target", id, "queueLength", len(e.Queue))
}

func (e *Engine) findQuestion(id string) (models.WorkflowQuestion, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.WorkflowQuestion{}, false
}

func (e *Engine) answered(id string) bool {
	for _, a := range e.Answers {
		if a.QuestionID == id {
			return true
		}
	}
	return false
}

// IsComplete reports whether no question remains.
func (e *Engine) IsComplete() bool {
	_, ok := e.CurrentQuestion()
	return !ok
}

// AnswersCopy returns the recorded answers in traversal order.
func (e *Engine) AnswersCopy() []Answer {
	out := make([]Answer, len(e.Answers))
	copy(out, e.Answers)
	return out
}

// Reset returns the engine to idle.
func (e *Engine) Reset() {
	*e = Engine{}
}

// CurrentOptions returns the option texts of the current question, in order.
func (e *Engine) CurrentOptions() []string {
	q, ok := e.CurrentQuestion()
	if !ok {
		return nil
	}
	var out []string
	for _, opt := range q.SortedOptions() {
		if t := strings.TrimSpace(opt.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// AttachmentURL returns the download URL of the current question's file, if it has one.
func (e *Engine) AttachmentURL(apiBase string) (string, string, bool) {
	q, ok := e.CurrentQuestion()
	if !ok || !q.Attachment.HasFile || q.ID == "" || e.AppID == "" || apiBase == "" {
		return "", "", false
	}
	name := q.Attachment.Filename
	if name == "" {
		name = "Download file"
	}
	url := fmt.Sprintf("%s/chatbot-workflows/apps/%s/%s/attachment", strings.TrimRight(apiBase, "/"), e.AppID, q.ID)
	return url, name, true
}

// FileMarker renders a file attachment as the markup understood by the web widget.
func FileMarker(url, name string) string {
	return fmt.Sprintf(`<file url="%s" name="%s">📎 %s</file>`, html.EscapeString(url), html.EscapeString(name), name)
}
