package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/api/dto"
	"github.com/spec-kit/helpdesk-router/internal/auth"
	"github.com/spec-kit/helpdesk-router/internal/repository"
	"github.com/spec-kit/helpdesk-router/internal/service"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// AdminHandler exposes operator endpoints guarded by admin tokens.
type AdminHandler struct {
	directory repository.DirectoryRepository
	tickets   *service.TicketService
	roster    *service.RosterService
	logger    *zap.Logger
}

// NewAdminHandler constructs handler.
func NewAdminHandler(directory repository.DirectoryRepository, tickets *service.TicketService, roster *service.RosterService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{directory: directory, tickets: tickets, roster: roster, logger: logger}
}

// RefreshDirectory POST /admin/directory/refresh.
func (h *AdminHandler) RefreshDirectory(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.directory.Refresh(ctx); err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	teams, err := h.directory.ListTeams(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	topics, err := h.directory.ListTopics(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}
	answers, err := h.directory.ListAutoAnswers(ctx)
	if err != nil {
		return apperrors.NewExternalFailure("directory", err)
	}

	if principal, ok := auth.PrincipalFromContext(c); ok {
		h.logger.Info("directory refreshed", zap.String("operator", principal.Operator))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.RefreshResponse{
		Teams:       len(teams),
		Topics:      len(topics),
		AutoAnswers: len(answers),
	}})
}

// GetTicket GET /admin/tickets/:id.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetail(*ticket)})
}

// TeamOnCall GET /admin/teams/:id/oncall.
func (h *AdminHandler) TeamOnCall(c *fiber.Ctx) error {
	entry, err := h.roster.ForTeam(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OnCall(entry)})
}

// OnCallOverview GET /admin/oncall.
func (h *AdminHandler) OnCallOverview(c *fiber.Ctx) error {
	entries, err := h.roster.Overview(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.OnCallResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.OnCall(e))
	}
	return c.JSON(fiber.Map{"data": out})
}
