package handlers

import (
	"net/http"

	"github.com/sheikh-saqib/finance-ledger/internal/api/middleware"
)

// respond writes v, or the error mapped to its status.
func respond[T any](h *Handler, w http.ResponseWriter, r *http.Request, v T, err error) {
	if h.failed(w, r, err) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// ListClients handles GET /clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.ledger.Clients(r.Context())
	respond(h, w, r, clients, err)
}

// GetClient handles GET /clients/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.ledger.Client(r.Context(), r.PathValue("id"))
	respond(h, w, r, client, err)
}

// UpdateClient handles PUT /clients/{id}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	client, err := h.ledger.UpdateClient(r.Context(), r.PathValue("id"), req.Username)
	respond(h, w, r, client, err)
}

// GetAccount handles GET /accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.Account(r.Context(), r.PathValue("id"))
	respond(h, w, r, account, err)
}

// GetTransaction handles GET /transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.Transaction(r.Context(), r.PathValue("id"))
	respond(h, w, r, tx, err)
}

// ListBudgets handles GET /budgets
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.ledger.Budgets(r.Context())
	respond(h, w, r, budgets, err)
}

// GetBudget handles GET /budgets/{id}
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.ledger.Budget(r.Context(), r.PathValue("id"))
	respond(h, w, r, budget, err)
}

// FilterBudgets handles GET /budgets/filter?client_id=&category_id=
func (h *Handler) FilterBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	budgets, err := h.ledger.FilterBudgets(r.Context(), q.Get("client_id"), q.Get("category_id"))
	respond(h, w, r, budgets, err)
}

// BudgetsByClient handles GET /clients/{id}/budgets
func (h *Handler) BudgetsByClient(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.ledger.BudgetsByClient(r.Context(), r.PathValue("id"))
	respond(h, w, r, budgets, err)
}
