// Package dispatch executes scheduled tasks and automated-reply rules:
// it runs the attached command when there is one, renders the outgoing
// text, and hands it to the messaging session.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/klchiu/waops/action"
	"github.com/klchiu/waops/command"
	"github.com/klchiu/waops/errors"
	"github.com/klchiu/waops/render"
	"github.com/klchiu/waops/task"
	"github.com/klchiu/waops/wa"
)

// NoReplyText stands in for a reply rule whose message was never
// configured, so the trigger still gets an answer.
const NoReplyText = "no reply message configured"

// Orchestrator ties the command runner and template renderer to a
// messaging session. It is stateless; all state lives in the
// collections and the session.
type Orchestrator struct {
	session wa.Session
	runner  *command.Runner
	log     *zap.SugaredLogger
	now     func() time.Time
}

// New creates an orchestrator bound to the given session.
func New(session wa.Session, runner *command.Runner, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		session: session,
		runner:  runner,
		log:     log,
		now:     time.Now,
	}
}

// Fire executes one occurrence of a task: for command tasks the task's
// message template is rendered with the command output (falling back to
// the bare output when no template is set), otherwise the stored message
// is sent as-is. A command failure sends a failure notice to the task's
// own target chat and returns the error.
//
// Delete and forward task kinds currently execute as plain sends; the
// session primitive only supports sending text.
func (o *Orchestrator) Fire(ctx context.Context, t task.Task) error {
	if !o.session.IsConnected() {
		return errors.ErrNotConnected
	}

	jid := t.TargetJID()
	var text string

	switch t.Kind {
	case task.KindRunCommand:
		out, err := o.runner.Run(ctx, t.Command, t.OutputFilters)
		if err != nil {
			o.notifyFailure(ctx, jid, err)
			return errors.Wrapf(err, "task %s command failed", t.ID)
		}
		tpl := t.Message
		if tpl == "" {
			tpl = render.ResponsePlaceholder
		}
		text = render.Message(tpl, o.now(), out)
	default:
		text = t.Message
	}

	if err := o.session.SendText(ctx, jid, text); err != nil {
		return errors.Wrapf(err, "task %s send failed", t.ID)
	}
	o.log.Infow("Task fired", "task", t.ID, "title", t.Title, "target", jid)
	return nil
}

// RunRule executes a matched reply rule, answering into the chat the
// trigger message came from.
func (o *Orchestrator) RunRule(ctx context.Context, r action.Rule, senderJID string) error {
	if !o.session.IsConnected() {
		return errors.ErrNotConnected
	}

	var text string
	switch r.Kind {
	case action.KindRunCommand:
		out, err := o.runner.Run(ctx, r.Command, r.OutputFilters)
		if err != nil {
			o.notifyFailure(ctx, senderJID, err)
			return errors.Wrapf(err, "rule %s command failed", r.ID)
		}
		tpl := r.ResponseTemplate
		if tpl == "" {
			tpl = render.ResponsePlaceholder
		}
		text = render.Message(tpl, o.now(), out)
	default:
		msg := r.ReplyMessage
		if msg == "" {
			msg = NoReplyText
		}
		text = render.Message(msg, o.now(), "")
	}

	if err := o.session.SendText(ctx, senderJID, text); err != nil {
		return errors.Wrapf(err, "rule %s send failed", r.ID)
	}
	o.log.Infow("Automated reply sent", "rule", r.ID, "trigger", r.TriggerPattern, "to", senderJID)
	return nil
}

// notifyFailure best-effort reports a command failure into the chat
// that would have received the output.
func (o *Orchestrator) notifyFailure(ctx context.Context, jid string, cause error) {
	text := fmt.Sprintf("command execution failed: %v", cause)
	if err := o.session.SendText(ctx, jid, text); err != nil {
		o.log.Warnw("Failed to deliver failure notice", "to", jid, "error", err)
	}
}
