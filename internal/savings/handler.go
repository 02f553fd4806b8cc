package savings

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nestegg-app/nestegg/internal/auth"
	"github.com/nestegg-app/nestegg/internal/ledger"
	"github.com/nestegg-app/nestegg/internal/response"
	"github.com/nestegg-app/nestegg/internal/validation"
)

// Handler exposes the /savings endpoints.
type Handler struct {
	service   *Service
	validator *validation.Validator
}

// NewHandler constructs a savings handler.
func NewHandler(service *Service, v *validation.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Description string          `json:"description" validate:"max=200"`
}

type transactionResponse struct {
	ID            string          `json:"id"`
	Type          ledger.Type     `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func toTransaction(e ledger.Entry) transactionResponse {
	return transactionResponse{
		ID:            e.ID,
		Type:          e.Type,
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
	}
}

// Deposit credits the authenticated account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.transact(c, h.service.Deposit, "Deposit successful")
}

// Withdraw debits the authenticated account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.transact(c, h.service.Withdraw, "Withdrawal successful")
}

type operation func(ctx context.Context, in Input) (Outcome, error)

func (h *Handler) transact(c *fiber.Ctx, op operation, message string) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "Invalid request body", err)
	}
	req.Description = strings.TrimSpace(req.Description)
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	out, err := op(c.UserContext(), Input{
		AccountID:   auth.AccountID(c),
		DeviceID:    auth.DeviceID(c),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return ledgerError(err)
	}

	return response.OK(c, http.StatusOK, message, fiber.Map{
		"transaction": toTransaction(out.Entry),
		"balance":     out.Balance,
		"lowBalance":  out.LowBalance,
	})
}

// Balance returns the authenticated account's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	summary, err := h.service.Balance(c.UserContext(), auth.AccountID(c))
	if err != nil {
		return ledgerError(err)
	}
	return response.OK(c, http.StatusOK, "", fiber.Map{
		"balance":    summary.Balance,
		"lowBalance": summary.LowBalance,
	})
}

// Transactions returns one page of history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	page, err := h.service.Transactions(c.UserContext(), auth.AccountID(c), c.QueryInt("page", 1), c.QueryInt("limit", ledger.DefaultPageLimit))
	if err != nil {
		return ledgerError(err)
	}

	items := make([]transactionResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toTransaction(e))
	}
	return response.OK(c, http.StatusOK, "", fiber.Map{
		"transactions": items,
		"pagination":   paginationResponse{Page: page.Page, Limit: page.Limit, Total: page.Total, Pages: page.Pages},
	})
}

func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return &response.Error{Status: http.StatusBadRequest, Message: "Insufficient balance", Code: response.CodeInsufficientFunds, Err: err}
	case errors.Is(err, ledger.ErrTransactionAborted):
		return &response.Error{Status: http.StatusServiceUnavailable, Message: "Transaction could not be completed. Please try again.", Code: response.CodeTransactionAborted, Err: err}
	case errors.Is(err, ledger.ErrBalanceLimit):
		return response.NewError(http.StatusBadRequest, "Deposit would exceed the maximum balance", err)
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidType):
		return response.NewError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return response.NewError(http.StatusNotFound, "User not found", err)
	default:
		return err
	}
}
