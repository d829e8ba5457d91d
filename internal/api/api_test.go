package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/findithq/findit/internal/blobstore"
	"github.com/findithq/findit/internal/db"
	"github.com/findithq/findit/internal/model"
	"github.com/findithq/findit/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, database
}

// loginAs creates a user with the given role and returns a session token.
func loginAs(t *testing.T, server *httptest.Server, database *sql.DB, email, role string) string {
	t.Helper()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if _, err := store.CreateUser(context.Background(), database, "Test", "User", email, string(hash), role); err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}

	body, _ := json.Marshal(map[string]string{"email": email, "password": "password123"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed for %s: %d", email, resp.StatusCode)
	}

	var login struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}
	return login.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	server, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"password":   "password123",
	})
	resp, _ := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var user model.User
	json.NewDecoder(resp.Body).Decode(&user)
	resp.Body.Close()

	// Self-registration never grants a staff role.
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}

	// Duplicate email is rejected.
	resp, _ = http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong password.
	body, _ = json.Marshal(map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedRequests(t *testing.T) {
	server, _ := setupTestServer(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/items/report/lost"},
		{"GET", "/api/items/status/lost"},
		{"GET", "/api/claims/pending"},
		{"GET", "/api/users/profile"},
	}
	for _, e := range endpoints {
		req, _ := http.NewRequest(e.method, server.URL+e.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", e.method, e.path, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", e.method, e.path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

// TestFoundItemClaimFlow walks an item through the whole pipeline: a user
// reports it found, a guard receives it, an officer verifies and lists it,
// another user claims it, and the officer approves the claim.
func TestFoundItemClaimFlow(t *testing.T) {
	server, database := setupTestServer(t)

	finder := loginAs(t, server, database, "finder@example.com", model.RoleUser)
	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)
	officer := loginAs(t, server, database, "officer@example.com", model.RoleSecurityOfficer)
	claimant := loginAs(t, server, database, "claimant@example.com", model.RoleUser)

	// Finder reports the item found and gets a handoff token.
	var reported struct {
		Item  model.Item `json:"item"`
		Token string     `json:"token"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", finder, map[string]string{
		"item_type":   "backpack",
		"description": "Blue backpack with laptop stickers",
		"location":    "Lecture hall B",
	})
	doJSON(t, req, http.StatusCreated, &reported)

	if reported.Item.Status != model.ItemStatusSubmitted {
		t.Fatalf("expected status 'submitted', got %q", reported.Item.Status)
	}
	if reported.Token == "" {
		t.Fatal("expected a handoff token")
	}

	// The token shows up under the finder's pending handoffs.
	var mine []model.Item
	req, _ = authRequest("GET", server.URL+"/api/items/my-tokens", finder, nil)
	doJSON(t, req, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].Token != reported.Token {
		t.Fatalf("expected the submitted item under my-tokens, got %+v", mine)
	}

	// The guard looks the item up by its token at the desk.
	var lookup struct {
		Item model.Item `json:"item"`
	}
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+reported.Token, guard, nil)
	doJSON(t, req, http.StatusOK, &lookup)
	if lookup.Item.ID != reported.Item.ID {
		t.Fatalf("token lookup returned item %d, want %d", lookup.Item.ID, reported.Item.ID)
	}

	itemPath := server.URL + "/api/items/" + itoa(reported.Item.ID)

	// Guard accepts the item into custody.
	var reviewed struct {
		Item model.Item `json:"item"`
	}
	req, _ = authRequest("PUT", itemPath+"/review", guard, map[string]string{"status": "received"})
	doJSON(t, req, http.StatusOK, &reviewed)
	if reviewed.Item.Status != model.ItemStatusReceived {
		t.Fatalf("expected status 'received', got %q", reviewed.Item.Status)
	}

	// Reviewing again is a conflict.
	req, _ = authRequest("PUT", itemPath+"/review", guard, map[string]string{"status": "received"})
	doJSON(t, req, http.StatusConflict, nil)

	// Officer verifies the item with screening questions.
	var verified struct {
		Item model.Item `json:"item"`
	}
	req, _ = authRequest("PUT", itemPath+"/verify", officer, map[string]any{
		"verified_description": "Blue backpack, three stickers",
		"questions":            []string{"What brand is the laptop inside?"},
		"images_public":        true,
	})
	doJSON(t, req, http.StatusOK, &verified)
	if verified.Item.Status != model.ItemStatusVerified {
		t.Fatalf("expected status 'verified', got %q", verified.Item.Status)
	}

	// The verified item is now listed for regular users.
	var listed []model.Item
	req, _ = authRequest("GET", server.URL+"/api/items/status/verified", claimant, nil)
	doJSON(t, req, http.StatusOK, &listed)
	if len(listed) != 1 {
		t.Fatalf("expected 1 verified item, got %d", len(listed))
	}

	// Claimant files a claim and gets a pickup token.
	var claimed struct {
		Request model.ItemRequest `json:"request"`
		Token   string            `json:"token"`
	}
	req, _ = authRequest("POST", itemPath+"/claim", claimant, map[string]any{
		"answers": []model.Answer{{Question: "What brand is the laptop inside?", Answer: "Thinkpad"}},
	})
	doJSON(t, req, http.StatusCreated, &claimed)
	if claimed.Request.Status != model.RequestStatusPending {
		t.Fatalf("expected status 'pending', got %q", claimed.Request.Status)
	}
	if claimed.Token == "" {
		t.Fatal("expected a pickup token")
	}

	// The claim shows up in the officers' queue with the item joined.
	var pending []model.ItemRequest
	req, _ = authRequest("GET", server.URL+"/api/claims/pending", officer, nil)
	doJSON(t, req, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].Item == nil {
		t.Fatalf("expected 1 pending claim with item, got %+v", pending)
	}

	// Officer approves the claim.
	var resolved struct {
		Request model.ItemRequest `json:"request"`
	}
	req, _ = authRequest("PUT", server.URL+"/api/claims/"+itoa(claimed.Request.ID)+"/verify", officer, map[string]string{
		"verification_status": "approved",
	})
	doJSON(t, req, http.StatusOK, &resolved)
	if resolved.Request.Status != model.RequestStatusVerified {
		t.Fatalf("expected status 'verified', got %q", resolved.Request.Status)
	}

	// Approval cascades onto the item.
	item, _ := store.GetItem(context.Background(), database, reported.Item.ID)
	if item.Status != model.ItemStatusClaimed {
		t.Errorf("expected item status 'claimed', got %q", item.Status)
	}

	// A second resolution is a conflict.
	req, _ = authRequest("PUT", server.URL+"/api/claims/"+itoa(claimed.Request.ID)+"/verify", officer, map[string]string{
		"verification_status": "rejected",
	})
	doJSON(t, req, http.StatusConflict, nil)
}

func TestRoleEnforcement(t *testing.T) {
	server, database := setupTestServer(t)

	user := loginAs(t, server, database, "user@example.com", model.RoleUser)
	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)

	// A regular user may not review items.
	req, _ := authRequest("PUT", server.URL+"/api/items/1/review", user, map[string]string{"status": "received"})
	doJSON(t, req, http.StatusForbidden, nil)

	// A guard may not verify items or resolve claims.
	req, _ = authRequest("PUT", server.URL+"/api/items/1/verify", guard, map[string]any{})
	doJSON(t, req, http.StatusForbidden, nil)
	req, _ = authRequest("PUT", server.URL+"/api/claims/1/verify", guard, map[string]string{"verification_status": "approved"})
	doJSON(t, req, http.StatusForbidden, nil)

	// Neither may touch user administration.
	req, _ = authRequest("GET", server.URL+"/api/admin/users", guard, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// A regular user may not browse the submitted bucket.
	req, _ = authRequest("GET", server.URL+"/api/items/status/submitted", user, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// An unknown bucket is a bad request, not a policy question.
	req, _ = authRequest("GET", server.URL+"/api/items/status/misplaced", user, nil)
	doJSON(t, req, http.StatusBadRequest, nil)
}

func TestLostReportAndRejection(t *testing.T) {
	server, database := setupTestServer(t)

	reporter := loginAs(t, server, database, "reporter@example.com", model.RoleUser)
	finder := loginAs(t, server, database, "finder@example.com", model.RoleUser)
	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)

	// A lost report needs no location, it defaults.
	var lost struct {
		Item model.Item `json:"item"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/lost", reporter, map[string]string{
		"item_type":   "keys",
		"description": "Keychain with a red fob",
	})
	doJSON(t, req, http.StatusCreated, &lost)
	if lost.Item.Location != "Unknown location" {
		t.Errorf("expected default location, got %q", lost.Item.Location)
	}
	if lost.Item.Token != "" {
		t.Error("lost reports should not carry tokens")
	}

	// Missing fields are reported together.
	req, _ = authRequest("POST", server.URL+"/api/items/report/lost", reporter, map[string]string{})
	doJSON(t, req, http.StatusBadRequest, nil)

	// A found report can be rejected at the desk with a default reason.
	var found struct {
		Item model.Item `json:"item"`
	}
	req, _ = authRequest("POST", server.URL+"/api/items/report/found", finder, map[string]string{
		"item_type":   "bottle",
		"description": "Steel water bottle",
		"location":    "Gym",
	})
	doJSON(t, req, http.StatusCreated, &found)

	var rejected struct {
		Item model.Item `json:"item"`
	}
	req, _ = authRequest("PUT", server.URL+"/api/items/"+itoa(found.Item.ID)+"/review", guard, map[string]string{
		"status": "rejected",
	})
	doJSON(t, req, http.StatusOK, &rejected)
	if rejected.Item.Status != model.ItemStatusRejected {
		t.Fatalf("expected status 'rejected', got %q", rejected.Item.Status)
	}
	if rejected.Item.RejectionReason != "No reason provided" {
		t.Errorf("expected default rejection reason, got %q", rejected.Item.RejectionReason)
	}
}

func TestStaffFoundReportSkipsHandoff(t *testing.T) {
	server, database := setupTestServer(t)

	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)
	user := loginAs(t, server, database, "user@example.com", model.RoleUser)

	var reported struct {
		Item model.Item `json:"item"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", guard, map[string]string{
		"item_type":   "umbrella",
		"description": "Black umbrella",
		"location":    "Front desk",
	})
	doJSON(t, req, http.StatusCreated, &reported)
	if reported.Item.Status != model.ItemStatusReceived {
		t.Fatalf("expected status 'received', got %q", reported.Item.Status)
	}
	if reported.Item.Token != "" {
		t.Error("staff intake should not carry a token")
	}

	// Received items are claimable straight away.
	req, _ = authRequest("POST", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/claim", user, map[string]any{})
	doJSON(t, req, http.StatusCreated, nil)
}

func TestClaimOnSubmittedItemConflicts(t *testing.T) {
	server, database := setupTestServer(t)

	finder := loginAs(t, server, database, "finder@example.com", model.RoleUser)
	claimant := loginAs(t, server, database, "claimant@example.com", model.RoleUser)

	var reported struct {
		Item model.Item `json:"item"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", finder, map[string]string{
		"item_type":   "scarf",
		"description": "Wool scarf",
		"location":    "Bus stop",
	})
	doJSON(t, req, http.StatusCreated, &reported)

	req, _ = authRequest("POST", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/claim", claimant, map[string]any{})
	doJSON(t, req, http.StatusConflict, nil)
}

func TestTokenLookupRules(t *testing.T) {
	server, database := setupTestServer(t)

	finder := loginAs(t, server, database, "finder@example.com", model.RoleUser)
	user := loginAs(t, server, database, "user@example.com", model.RoleUser)
	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)
	officer := loginAs(t, server, database, "officer@example.com", model.RoleSecurityOfficer)

	var reported struct {
		Item  model.Item `json:"item"`
		Token string     `json:"token"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", finder, map[string]string{
		"item_type":   "gloves",
		"description": "Leather gloves",
		"location":    "Parking lot",
	})
	doJSON(t, req, http.StatusCreated, &reported)

	// A malformed token never reaches the database.
	req, _ = authRequest("GET", server.URL+"/api/items/token/WHATEVER-1234", guard, nil)
	doJSON(t, req, http.StatusBadRequest, nil)

	// A well-formed unknown token is not found.
	req, _ = authRequest("GET", server.URL+"/api/items/token/ITEM-00000000", guard, nil)
	doJSON(t, req, http.StatusNotFound, nil)

	// Regular users cannot look up tokens at all.
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+reported.Token, user, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// A guard can, while the item is still awaiting handover.
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+reported.Token, guard, nil)
	doJSON(t, req, http.StatusOK, nil)

	// Once reviewed, the item token is out of the guard's hands.
	req, _ = authRequest("PUT", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/review", guard, map[string]string{"status": "received"})
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+reported.Token, guard, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// Officers can look it up in any state.
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+reported.Token, officer, nil)
	doJSON(t, req, http.StatusOK, nil)

	// Request tokens: only officers and admins, and the guard never.
	var claimed struct {
		Request model.ItemRequest `json:"request"`
		Token   string            `json:"token"`
	}
	req, _ = authRequest("POST", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/claim", user, map[string]any{})
	doJSON(t, req, http.StatusCreated, &claimed)

	req, _ = authRequest("GET", server.URL+"/api/items/token/"+claimed.Token, guard, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	var lookup struct {
		Request model.ItemRequest `json:"request"`
	}
	req, _ = authRequest("GET", server.URL+"/api/items/token/"+claimed.Token, officer, nil)
	doJSON(t, req, http.StatusOK, &lookup)
	if lookup.Request.Item == nil {
		t.Error("expected the claimed item joined on the request")
	}
}

func TestCancelClaimEndpoint(t *testing.T) {
	server, database := setupTestServer(t)

	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)
	claimant := loginAs(t, server, database, "claimant@example.com", model.RoleUser)
	other := loginAs(t, server, database, "other@example.com", model.RoleUser)

	var reported struct {
		Item model.Item `json:"item"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", guard, map[string]string{
		"item_type":   "hat",
		"description": "Grey beanie",
		"location":    "Cafeteria",
	})
	doJSON(t, req, http.StatusCreated, &reported)

	var claimed struct {
		Request model.ItemRequest `json:"request"`
	}
	req, _ = authRequest("POST", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/claim", claimant, map[string]any{})
	doJSON(t, req, http.StatusCreated, &claimed)

	claimPath := server.URL + "/api/claims/" + itoa(claimed.Request.ID) + "/cancel"

	// Someone else's claim cannot be cancelled.
	req, _ = authRequest("PUT", claimPath, other, nil)
	doJSON(t, req, http.StatusNotFound, nil)

	req, _ = authRequest("PUT", claimPath, claimant, nil)
	doJSON(t, req, http.StatusOK, nil)

	// Cancelling twice conflicts.
	req, _ = authRequest("PUT", claimPath, claimant, nil)
	doJSON(t, req, http.StatusConflict, nil)
}

func TestAdminUserManagement(t *testing.T) {
	server, database := setupTestServer(t)

	admin := loginAs(t, server, database, "admin@example.com", model.RoleAdmin)
	loginAs(t, server, database, "promote@example.com", model.RoleUser)

	var users []model.User
	req, _ := authRequest("GET", server.URL+"/api/admin/users", admin, nil)
	doJSON(t, req, http.StatusOK, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	var target model.User
	for _, u := range users {
		if u.Email == "promote@example.com" {
			target = u
		}
	}

	// Promote to guard.
	req, _ = authRequest("PUT", server.URL+"/api/admin/users/"+itoa(target.ID)+"/role", admin, map[string]string{
		"role": model.RoleSecurityGuard,
	})
	doJSON(t, req, http.StatusOK, nil)

	// Unknown roles are rejected.
	req, _ = authRequest("PUT", server.URL+"/api/admin/users/"+itoa(target.ID)+"/role", admin, map[string]string{
		"role": "janitor",
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// Search requires a query.
	req, _ = authRequest("GET", server.URL+"/api/admin/users/search", admin, nil)
	doJSON(t, req, http.StatusBadRequest, nil)

	var found []model.User
	req, _ = authRequest("GET", server.URL+"/api/admin/users/search?email=promote", admin, nil)
	doJSON(t, req, http.StatusOK, &found)
	if len(found) != 1 {
		t.Errorf("expected 1 match, got %d", len(found))
	}

	// Admins cannot delete themselves.
	var self model.User
	for _, u := range users {
		if u.Email == "admin@example.com" {
			self = u
		}
	}
	req, _ = authRequest("DELETE", server.URL+"/api/admin/users/"+itoa(self.ID), admin, nil)
	doJSON(t, req, http.StatusBadRequest, nil)

	// Deleting the other user works and locks them out.
	req, _ = authRequest("DELETE", server.URL+"/api/admin/users/"+itoa(target.ID), admin, nil)
	doJSON(t, req, http.StatusOK, nil)

	body, _ := json.Marshal(map[string]string{"email": "promote@example.com", "password": "password123"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after deletion, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The freed address can register again and the new account logs in,
	// regardless of the dead row still in the table.
	body, _ = json.Marshal(map[string]string{
		"first_name": "Returning",
		"email":      "promote@example.com",
		"password":   "password123",
	})
	resp, _ = http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for re-registration, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"email": "promote@example.com", "password": "password123"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for re-registered login, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, database := setupTestServer(t)

	token := loginAs(t, server, database, "user@example.com", model.RoleUser)

	req, _ := authRequest("GET", server.URL+"/api/users/profile", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	// The revoked session no longer works.
	req, _ = authRequest("GET", server.URL+"/api/users/profile", token, nil)
	doJSON(t, req, http.StatusUnauthorized, nil)
}

func TestProfileUpdate(t *testing.T) {
	server, database := setupTestServer(t)

	token := loginAs(t, server, database, "user@example.com", model.RoleUser)

	var updated model.User
	req, _ := authRequest("PUT", server.URL+"/api/users/profile", token, map[string]string{
		"first_name": "Grace",
		"last_name":  "Hopper",
	})
	doJSON(t, req, http.StatusOK, &updated)
	if updated.FirstName != "Grace" || updated.LastName != "Hopper" {
		t.Errorf("unexpected name: %q %q", updated.FirstName, updated.LastName)
	}

	// Email is not caller-editable and survives the update.
	if updated.Email != "user@example.com" {
		t.Errorf("email changed: %q", updated.Email)
	}
}

func TestBlobEndpoint(t *testing.T) {
	server, database := setupTestServer(t)

	token := loginAs(t, server, database, "user@example.com", model.RoleUser)

	blob, err := blobstore.Store(context.Background(), database, []byte("jpeg bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("storing blob: %v", err)
	}

	req, _ := authRequest("GET", server.URL+"/api/blobs/"+blob.StorageID, token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET blob: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	req, _ = authRequest("GET", server.URL+"/api/blobs/missing", token, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestTimeSlotsEndpoint(t *testing.T) {
	server, database := setupTestServer(t)

	user := loginAs(t, server, database, "user@example.com", model.RoleUser)

	req, _ := authRequest("GET", server.URL+"/api/items/time-slots", user, nil)
	doJSON(t, req, http.StatusBadRequest, nil)

	var slots []map[string]any
	req, _ = authRequest("GET", server.URL+"/api/items/time-slots?date=2026-09-01", user, nil)
	doJSON(t, req, http.StatusOK, &slots)
	if len(slots) != 16 {
		t.Errorf("expected 16 slots, got %d", len(slots))
	}
}

func TestHiddenImagesProjection(t *testing.T) {
	server, database := setupTestServer(t)

	guard := loginAs(t, server, database, "guard@example.com", model.RoleSecurityGuard)
	officer := loginAs(t, server, database, "officer@example.com", model.RoleSecurityOfficer)
	user := loginAs(t, server, database, "user@example.com", model.RoleUser)

	var reported struct {
		Item model.Item `json:"item"`
	}
	req, _ := authRequest("POST", server.URL+"/api/items/report/found", guard, map[string]string{
		"item_type":   "phone",
		"description": "Black smartphone",
		"location":    "Library",
	})
	doJSON(t, req, http.StatusCreated, &reported)

	// Seed an image row directly; uploads are exercised in the imaging tests.
	_, err := database.Exec(
		`INSERT INTO item_images (item_id, storage_id, url, position) VALUES (?, ?, ?, 0)`,
		reported.Item.ID, "blob-1", "/api/blobs/blob-1",
	)
	if err != nil {
		t.Fatalf("seeding image: %v", err)
	}

	// Images stay hidden until verification decides otherwise.
	req, _ = authRequest("PUT", server.URL+"/api/items/"+itoa(reported.Item.ID)+"/verify", officer, map[string]any{
		"verified_description": "Black smartphone",
		"images_public":        false,
	})
	doJSON(t, req, http.StatusOK, nil)

	var userView []model.Item
	req, _ = authRequest("GET", server.URL+"/api/items/status/verified", user, nil)
	doJSON(t, req, http.StatusOK, &userView)
	if len(userView) != 1 {
		t.Fatalf("expected 1 item, got %d", len(userView))
	}
	if len(userView[0].Images) != 0 {
		t.Errorf("expected images hidden from user, got %d", len(userView[0].Images))
	}

	var staffView []model.Item
	req, _ = authRequest("GET", server.URL+"/api/items/status/verified", officer, nil)
	doJSON(t, req, http.StatusOK, &staffView)
	if len(staffView[0].Images) != 1 {
		t.Errorf("expected officer to see images, got %d", len(staffView[0].Images))
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
