// Package api wires the ledger's HTTP handlers and middleware into one handler.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sheikh-saqib/finance-ledger/internal/api/handlers"
	"github.com/sheikh-saqib/finance-ledger/internal/api/middleware"
	"github.com/sheikh-saqib/finance-ledger/internal/ledger"
)

// NewRouter returns the full HTTP surface of the ledger.
func NewRouter(l *ledger.Ledger, log zerolog.Logger) http.Handler {
	h := handlers.NewHandler(l, log)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /transactions", h.PostTransaction)
	mux.HandleFunc("GET /transactions/{id}", h.GetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", h.UpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", h.DeleteTransaction)

	mux.HandleFunc("POST /goals", h.CreateGoal)
	mux.HandleFunc("GET /goals/{id}", h.GoalProgress)
	mux.HandleFunc("PUT /goals/{id}", h.UpdateGoal)
	mux.HandleFunc("DELETE /goals/{id}", h.DeleteGoal)
	mux.HandleFunc("POST /goals/{id}/funds", h.AddFundsToGoal)

	mux.HandleFunc("GET /clients", h.ListClients)
	mux.HandleFunc("POST /clients", h.CreateClient)
	mux.HandleFunc("GET /clients/{id}", h.GetClient)
	mux.HandleFunc("PUT /clients/{id}", h.UpdateClient)
	mux.HandleFunc("DELETE /clients/{id}", h.DeleteClient)
	mux.HandleFunc("GET /clients/{id}/accounts", h.AccountsByClient)
	mux.HandleFunc("GET /clients/{id}/goals", h.GoalsByClient)
	mux.HandleFunc("GET /clients/{id}/budgets", h.BudgetsByClient)
	mux.HandleFunc("GET /clients/{id}/categories/{categoryId}/transactions", h.TransactionsByClientCategory)

	mux.HandleFunc("POST /accounts", h.CreateAccount)
	mux.HandleFunc("GET /accounts/{id}", h.GetAccount)
	mux.HandleFunc("PUT /accounts/{id}", h.UpdateAccount)
	mux.HandleFunc("DELETE /accounts/{id}", h.DeleteAccount)

	mux.HandleFunc("GET /categories", h.ListCategories)
	mux.HandleFunc("POST /categories", h.CreateCategory)
	mux.HandleFunc("PUT /categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", h.DeleteCategory)

	mux.HandleFunc("GET /budgets", h.ListBudgets)
	mux.HandleFunc("GET /budgets/filter", h.FilterBudgets)
	mux.HandleFunc("GET /budgets/{id}", h.GetBudget)
	mux.HandleFunc("POST /budgets", h.CreateBudget)
	mux.HandleFunc("PUT /budgets/{id}", h.UpdateBudget)
	mux.HandleFunc("DELETE /budgets/{id}", h.DeleteBudget)

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(mux),
		),
	)
}
