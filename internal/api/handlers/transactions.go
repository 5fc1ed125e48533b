package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/api/middleware"
	"github.com/sheikh-saqib/finance-ledger/internal/ledger"
)

type transactionRequest struct {
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

func (req transactionRequest) input(w http.ResponseWriter) (ledger.TransactionInput, bool) {
	date, err := parseDate(req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return ledger.TransactionInput{}, false
	}
	return ledger.TransactionInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
	}, true
}

// PostTransaction handles POST /transactions
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := req.input(w)
	if !ok {
		return
	}

	tx, err := h.ledger.PostTransaction(r.Context(), in)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.ledger.UpdateTransaction(r.Context(), r.PathValue("id"), ledger.TransactionUpdate{
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
	})
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteTransaction(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddFundsToGoal handles POST /goals/{id}/funds
func (h *Handler) AddFundsToGoal(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := req.input(w)
	if !ok {
		return
	}

	goal, err := h.ledger.AddFundsToGoal(r.Context(), r.PathValue("id"), in)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, goal)
}

// AccountsByClient handles GET /clients/{id}/accounts
func (h *Handler) AccountsByClient(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.AccountsByClient(r.Context(), r.PathValue("id"))
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// GoalsByClient handles GET /clients/{id}/goals
func (h *Handler) GoalsByClient(w http.ResponseWriter, r *http.Request) {
	goals, err := h.ledger.GoalsByClient(r.Context(), r.PathValue("id"))
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, goals)
}

// TransactionsByClientCategory handles GET /clients/{id}/categories/{categoryId}/transactions
func (h *Handler) TransactionsByClientCategory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.TransactionsByClientCategory(r.Context(), r.PathValue("id"), r.PathValue("categoryId"))
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// ListCategories handles GET /categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.ledger.AllCategories(r.Context())
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, categories)
}

// GoalProgress handles GET /goals/{id}
func (h *Handler) GoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.ledger.Progress(r.Context(), r.PathValue("id"))
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"goal":      progress.Goal,
		"remaining": progress.Remaining,
		"reached":   progress.Reached,
	})
}
