package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/render"
	"github.com/spec-kit/helpdesk-router/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// HelpService answers help requests and opens the ticket forms.
type HelpService struct {
	directory repository.DirectoryRepository
	chat      ChatClient
	logger    *zap.Logger
}

func NewHelpService(directory repository.DirectoryRepository, chat ChatClient, logger *zap.Logger) *HelpService {
	return &HelpService{directory: directory, chat: chat, logger: logger}
}

// ShowHelp posts the help message visible only to userID.
func (s *HelpService) ShowHelp(ctx context.Context, channel, userID string) error {
	blocks, text := render.HelpMessage()
	if err := s.chat.PostEphemeral(ctx, channel, userID, text, blocks...); err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}

// Greet replies to a plain hello.
func (s *HelpService) Greet(ctx context.Context, channel, threadTS, userID string) error {
	_, err := s.chat.PostMessage(ctx, OutboundMessage{Channel: channel, ThreadTS: threadTS, Text: render.Greeting(userID)})
	if err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}

// OpenSupportForm opens the support request modal.
func (s *HelpService) OpenSupportForm(ctx context.Context, triggerID, userID string) error {
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	topics, err := s.directory.ListTopics(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	if err := s.chat.OpenView(ctx, triggerID, render.SupportModal(teams, topics, userID)); err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}

// OpenReassignForm opens the reassignment modal for ticketID.
func (s *HelpService) OpenReassignForm(ctx context.Context, triggerID, ticketID string) error {
	if ticketID == "" {
		return apperrors.NewValidationError("missing ticket id", nil)
	}
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	if err := s.chat.OpenView(ctx, triggerID, render.ReassignModal(ticketID, teams)); err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}
