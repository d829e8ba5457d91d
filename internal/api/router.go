package api

import (
	"database/sql"
	"net/http"

	"github.com/findithq/findit/internal/policy"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	blobsHandler := &BlobsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequirePermission(policy.ActionManageUsers)

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Session management.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Profile.
	mux.Handle("GET /api/users/profile", authMW(http.HandlerFunc(usersHandler.Profile)))
	mux.Handle("PUT /api/users/profile", authMW(http.HandlerFunc(usersHandler.UpdateProfile)))

	// User administration (admin only).
	mux.Handle("GET /api/admin/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("GET /api/admin/users/search", authMW(requireAdmin(http.HandlerFunc(usersHandler.Search))))
	mux.Handle("PUT /api/admin/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.UpdateRole))))
	mux.Handle("DELETE /api/admin/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Item lifecycle.
	mux.Handle("POST /api/items/report/lost",
		authMW(RequirePermission(policy.ActionReportLost)(http.HandlerFunc(itemsHandler.ReportLost))))
	mux.Handle("POST /api/items/report/found",
		authMW(RequirePermission(policy.ActionReportFound)(http.HandlerFunc(itemsHandler.ReportFound))))
	mux.Handle("PUT /api/items/{id}/review",
		authMW(RequirePermission(policy.ActionReviewItem)(http.HandlerFunc(itemsHandler.Review))))
	mux.Handle("PUT /api/items/{id}/verify",
		authMW(RequirePermission(policy.ActionVerifyItem)(http.HandlerFunc(itemsHandler.Verify))))

	// Claims.
	mux.Handle("POST /api/items/{id}/claim",
		authMW(RequirePermission(policy.ActionClaimItem)(http.HandlerFunc(itemsHandler.Claim))))
	mux.Handle("PUT /api/claims/{id}/verify",
		authMW(RequirePermission(policy.ActionVerifyClaim)(http.HandlerFunc(itemsHandler.ResolveClaim))))
	mux.Handle("PUT /api/claims/{id}/cancel", authMW(http.HandlerFunc(itemsHandler.CancelClaim)))
	mux.Handle("GET /api/claims/pending",
		authMW(RequirePermission(policy.ActionListPending)(http.HandlerFunc(itemsHandler.PendingClaims))))
	mux.Handle("GET /api/claims/my-tokens", authMW(http.HandlerFunc(itemsHandler.MyClaimTokens)))

	// Lookups and listings. Status buckets and token lookups do their own
	// policy checks, the rules depend on the entity's state.
	mux.Handle("GET /api/items/my-tokens", authMW(http.HandlerFunc(itemsHandler.MyItemTokens)))
	mux.Handle("GET /api/items/status/{status}", authMW(http.HandlerFunc(itemsHandler.StatusBucket)))
	mux.Handle("GET /api/items/token/{token}", authMW(http.HandlerFunc(itemsHandler.TokenLookup)))
	mux.Handle("GET /api/items/time-slots",
		authMW(RequirePermission(policy.ActionViewTimeSlot)(http.HandlerFunc(itemsHandler.TimeSlots))))

	// Stored images.
	mux.Handle("GET /api/blobs/{id}", authMW(http.HandlerFunc(blobsHandler.Get)))

	return mux
}
