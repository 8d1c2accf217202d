package web

import (
	"net/http"

	"github.com/JonMunkholm/dummycsv/internal/core"
)

// currentUser returns the user loaded by the session middleware. Routes
// behind RequireUser always have one.
func currentUser(r *http.Request) core.User {
	u, _ := core.UserFromContext(r.Context())
	return u
}
