package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/render"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// HelpStepCallback identifies the help workflow step.
const HelpStepCallback = "help_step"

const helpStepUserInput = "user"

// WorkflowStep is a custom step offered to workflow builders. Edit opens
// its configuration, Save stores the submitted configuration and Execute
// runs the step.
type WorkflowStep interface {
	CallbackID() string
	Edit(ctx context.Context, triggerID string, inputs *slack.WorkflowStepInputs) error
	Save(ctx context.Context, editID string, state *slack.ViewState) error
	Execute(ctx context.Context, executeID string, inputs *slack.WorkflowStepInputs) error
}

// HelpStepInput is the configuration of the help step.
type HelpStepInput struct {
	UserID string
}

// HelpStepOutput is what the help step reports back to the workflow.
type HelpStepOutput struct {
	NotifiedUser string
}

func (in HelpStepInput) toInputs() *slack.WorkflowStepInputs {
	return &slack.WorkflowStepInputs{
		helpStepUserInput: slack.WorkflowStepInputElement{Value: in.UserID},
	}
}

func helpStepInputFrom(inputs *slack.WorkflowStepInputs) HelpStepInput {
	if inputs == nil {
		return HelpStepInput{}
	}
	return HelpStepInput{UserID: (*inputs)[helpStepUserInput].Value}
}

// HelpWorkflowStep sends the help message to a configured user.
type HelpWorkflowStep struct {
	chat      ChatClient
	workflows WorkflowClient
	logger    *zap.Logger
}

// NewHelpWorkflowStep constructs the step.
func NewHelpWorkflowStep(chat ChatClient, workflows WorkflowClient, logger *zap.Logger) *HelpWorkflowStep {
	return &HelpWorkflowStep{chat: chat, workflows: workflows, logger: logger}
}

func (h *HelpWorkflowStep) CallbackID() string { return HelpStepCallback }

func (h *HelpWorkflowStep) Edit(ctx context.Context, triggerID string, inputs *slack.WorkflowStepInputs) error {
	modal := render.HelpStepConfigModal(helpStepInputFrom(inputs).UserID)
	modal.CallbackID = HelpStepCallback
	if err := h.chat.OpenView(ctx, triggerID, modal.ModalViewRequest); err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}

func (h *HelpWorkflowStep) Save(ctx context.Context, editID string, state *slack.ViewState) error {
	in := HelpStepInput{UserID: render.ParseHelpStepConfig(state)}
	if in.UserID == "" {
		return apperrors.NewValidationError("please select a user", nil)
	}
	outputs := []slack.WorkflowStepOutput{{Name: "notified_user", Type: "user", Label: "Notified user"}}
	if err := h.workflows.SaveWorkflowStep(ctx, editID, in.toInputs(), &outputs); err != nil {
		return apperrors.NewExternalFailure("workflow", err)
	}
	return nil
}

func (h *HelpWorkflowStep) Execute(ctx context.Context, executeID string, inputs *slack.WorkflowStepInputs) error {
	in := helpStepInputFrom(inputs)
	out, err := h.run(ctx, in)
	if err != nil {
		h.logger.Warn("help workflow step failed", zap.String("execute_id", executeID), zap.Error(err))
		if ferr := h.workflows.FailWorkflowStep(ctx, executeID, err.Error()); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
	return h.workflows.CompleteWorkflowStep(ctx, executeID, map[string]string{"notified_user": out.NotifiedUser})
}

func (h *HelpWorkflowStep) run(ctx context.Context, in HelpStepInput) (HelpStepOutput, error) {
	if in.UserID == "" {
		return HelpStepOutput{}, errors.New("help step has no user configured")
	}
	blocks, text := render.HelpMessage()
	if _, err := h.chat.PostMessage(ctx, OutboundMessage{Channel: in.UserID, Blocks: blocks, Text: text}); err != nil {
		return HelpStepOutput{}, fmt.Errorf("post help to %s: %w", in.UserID, err)
	}
	return HelpStepOutput{NotifiedUser: in.UserID}, nil
}

// WorkflowSteps looks steps up by callback id.
type WorkflowSteps map[string]WorkflowStep

// NewWorkflowSteps indexes steps.
func NewWorkflowSteps(steps ...WorkflowStep) WorkflowSteps {
	reg := make(WorkflowSteps, len(steps))
	for _, s := range steps {
		reg[s.CallbackID()] = s
	}
	return reg
}

// Lookup returns the step for callbackID.
func (w WorkflowSteps) Lookup(callbackID string) (WorkflowStep, bool) {
	s, ok := w[callbackID]
	return s, ok
}
