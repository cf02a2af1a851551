package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

type TransactionService interface {
	GetRetryHistory(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error)
	GetStatus(ctx context.Context, transactionID int64) (*service.TransactionStatus, error)
	RequestRetry(ctx context.Context, transactionID int64) (string, error)
	CancelRetries(ctx context.Context, transactionID int64) (string, error)
}

type TransactionHandler struct {
	service TransactionService
}

func NewTransactionHandler(service TransactionService) (*TransactionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("transaction service is required")
	}
	return &TransactionHandler{service: service}, nil
}

func RegisterTransactionRoutes(router fiber.Router, service TransactionService) error {
	h, err := NewTransactionHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/transactions/:id/retry-history", h.GetRetryHistory)
	v1.Get("/transactions/:id/status", h.GetStatus)
	v1.Post("/transactions/:id/retry", h.RequestRetry)
	v1.Post("/transactions/:id/cancel", h.CancelRetries)

	return nil
}

type retryHistoryItem struct {
	AttemptNumber      int       `json:"attemptNumber"`
	Status             string    `json:"status"`
	ScheduledRetryTime time.Time `json:"scheduledRetryTime"`
	CreatedAt          time.Time `json:"createdAt"`
}

type retryHistoryResponse struct {
	TransactionID int64              `json:"transactionId"`
	Retries       []retryHistoryItem `json:"retries"`
}

type transactionStatusResponse struct {
	TransactionID  int64     `json:"transactionId"`
	UserID         int64     `json:"userId"`
	Status         string    `json:"status"`
	ErrorType      string    `json:"errorType"`
	AttemptNumber  int       `json:"attemptNumber"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	AttemptedAt    time.Time `json:"attemptedAt"`
	RecentFailures int64     `json:"recentFailures"`
}

func (h *TransactionHandler) GetRetryHistory(c *fiber.Ctx) error {
	transactionID, err := transactionIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	entries, err := h.service.GetRetryHistory(c.Context(), transactionID)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]retryHistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, retryHistoryItem{
			AttemptNumber:      entry.RetryCount,
			Status:             entry.Status.String(),
			ScheduledRetryTime: entry.ScheduledRetryTime,
			CreatedAt:          entry.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(retryHistoryResponse{
		TransactionID: transactionID,
		Retries:       items,
	})
}

func (h *TransactionHandler) GetStatus(c *fiber.Ctx) error {
	transactionID, err := transactionIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	status, err := h.service.GetStatus(c.Context(), transactionID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(transactionStatusResponse{
		TransactionID:  status.TransactionID,
		UserID:         status.UserID,
		Status:         status.Status,
		ErrorType:      status.ErrorType,
		AttemptNumber:  status.AttemptNumber,
		ErrorMessage:   status.ErrorMessage,
		AttemptedAt:    status.AttemptedAt,
		RecentFailures: status.RecentFailures,
	})
}

func (h *TransactionHandler) RequestRetry(c *fiber.Ctx) error {
	transactionID, err := transactionIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	message, err := h.service.RequestRetry(c.Context(), transactionID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"transactionId": transactionID,
		"message":       message,
	})
}

func (h *TransactionHandler) CancelRetries(c *fiber.Ctx) error {
	transactionID, err := transactionIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	message, err := h.service.CancelRetries(c.Context(), transactionID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"transactionId": transactionID,
		"message":       message,
	})
}

func transactionIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: transaction id must be a positive integer", domain.ErrValidation)
	}
	return int64(id), nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
