// Package cache implements the derived-view cache used by the ledger engine,
// backed either by process memory or by Redis, and the key scheme shared by
// writers (which invalidate) and readers (which populate on miss).
package cache

import "fmt"

// AllCategoriesKey caches the full category listing.
const AllCategoriesKey = "all-categories"

// AccountsByClientKey caches the account listing of one client.
func AccountsByClientKey(clientID string) string {
	return fmt.Sprintf("accounts-by-client:%s", clientID)
}

// TransactionsByClientCategoryKey caches a client's transactions in one category.
func TransactionsByClientCategoryKey(clientID, categoryID string) string {
	return fmt.Sprintf("transactions-by-client-category:%s:%s", clientID, categoryID)
}

// GoalsByClientKey caches the goal listing of one client.
func GoalsByClientKey(clientID string) string {
	return fmt.Sprintf("goals-by-client:%s", clientID)
}
