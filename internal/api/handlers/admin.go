package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/api/middleware"
	"github.com/sheikh-saqib/finance-ledger/internal/ledger"
)

// CreateClient handles POST /clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	client, err := h.ledger.CreateClient(r.Context(), ledger.ClientInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, client)
}

// DeleteClient handles DELETE /clients/{id}
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteClient(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountRequest struct {
	Name     string          `json:"name"`
	ClientID string          `json:"client_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// CreateAccount handles POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), ledger.AccountInput{
		Name:     req.Name,
		ClientID: req.ClientID,
		Balance:  req.Balance,
	})
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// UpdateAccount handles PUT /accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.ledger.UpdateAccount(r.Context(), r.PathValue("id"), req.Name, req.Balance)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE /accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteAccount(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name string `json:"name"`
}

// CreateCategory handles POST /categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}
	category, err := h.ledger.CreateCategory(r.Context(), req.Name)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}
	category, err := h.ledger.UpdateCategory(r.Context(), r.PathValue("id"), req.Name)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteCategory(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type budgetRequest struct {
	Limitation decimal.Decimal `json:"limitation"`
	Period     int             `json:"period"`
	ClientIDs  []string        `json:"client_ids"`
	CategoryID string          `json:"category_id"`
}

func (req budgetRequest) input() ledger.BudgetInput {
	return ledger.BudgetInput{
		Limitation: req.Limitation,
		Period:     req.Period,
		ClientIDs:  req.ClientIDs,
		CategoryID: req.CategoryID,
	}
}

// CreateBudget handles POST /budgets
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if !decode(w, r, &req) {
		return
	}
	budget, err := h.ledger.CreateBudget(r.Context(), req.input())
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, budget)
}

// UpdateBudget handles PUT /budgets/{id}
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if !decode(w, r, &req) {
		return
	}
	budget, err := h.ledger.UpdateBudget(r.Context(), r.PathValue("id"), req.input())
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, budget)
}

// DeleteBudget handles DELETE /budgets/{id}
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteBudget(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	ClientID     string          `json:"client_id"`
}

func (req goalRequest) input(w http.ResponseWriter) (ledger.GoalInput, bool) {
	start, err := parseDate(req.StartDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return ledger.GoalInput{}, false
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return ledger.GoalInput{}, false
	}
	return ledger.GoalInput{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		StartDate:    start,
		EndDate:      end,
		ClientID:     req.ClientID,
	}, true
}

// CreateGoal handles POST /goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := req.input(w)
	if !ok {
		return
	}
	goal, err := h.ledger.CreateGoal(r.Context(), in)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, goal)
}

// UpdateGoal handles PUT /goals/{id}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := req.input(w)
	if !ok {
		return
	}
	goal, err := h.ledger.UpdateGoal(r.Context(), r.PathValue("id"), in)
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if h.failed(w, r, h.ledger.DeleteGoal(r.Context(), r.PathValue("id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
