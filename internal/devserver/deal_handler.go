package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

type dealHandler struct {
	store    *store
	notifier *Notifier
	now      func() time.Time
	log      zerolog.Logger
}

type proposalRequest struct {
	Skill string `json:"skill" validate:"required,max=200"`
	Time  string `json:"time" validate:"required,max=100"`
	Place string `json:"place" validate:"required,max=200"`
}

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected completed cancelled"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Propose handles POST /deals/chats/:chatId/propose.
func (h *dealHandler) Propose(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	chatID, err := pathChatID(c)
	if err != nil {
		return err
	}

	var req proposalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	deal, err := h.store.proposeDeal(chatID, userID, req.Skill, req.Time, req.Place, h.now())
	if err != nil {
		return err
	}

	h.notifier.Publish(DealEvent{DealID: deal.ID, ChatID: chatID, NewStatus: deal.Status, ActorID: userID})
	h.log.Info().Str("deal_id", deal.ID).Int64("chat_id", chatID).Msg("deal proposed")
	return c.JSON(http.StatusCreated, deal)
}

// UpdateStatus handles PATCH /deals/chats/:chatId/status.
func (h *dealHandler) UpdateStatus(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	chatID, err := pathChatID(c)
	if err != nil {
		return err
	}

	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	deal, old, err := h.store.updateDealStatus(chatID, userID, domain.DealStatus(req.Status), req.Reason, h.now())
	if err != nil {
		return err
	}

	h.notifier.Publish(DealEvent{DealID: deal.ID, ChatID: chatID, OldStatus: old, NewStatus: deal.Status, ActorID: userID})
	h.log.Info().Str("deal_id", deal.ID).Str("from", string(*old)).Str("to", string(deal.Status)).Msg("deal status updated")
	return c.JSON(http.StatusOK, deal)
}

// GetChatDeal handles GET /deals/chats/:chatId.
func (h *dealHandler) GetChatDeal(c echo.Context) error {
	if _, err := ctxUserID(c); err != nil {
		return err
	}
	chatID, err := pathChatID(c)
	if err != nil {
		return err
	}
	deal, err := h.store.dealByChat(chatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deal)
}

// GetMyDeals handles GET /deals/my.
func (h *dealHandler) GetMyDeals(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.store.dealsForUser(userID))
}

// GetLogs handles GET /deals/:dealId/logs.
func (h *dealHandler) GetLogs(c echo.Context) error {
	if _, err := ctxUserID(c); err != nil {
		return err
	}
	entries, err := h.store.logsForDeal(c.Param("dealId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func pathChatID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}
	return id, nil
}
