package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/findithq/findit/internal/blobstore"
	"github.com/findithq/findit/internal/imaging"
	"github.com/findithq/findit/internal/model"
	"github.com/findithq/findit/internal/policy"
	"github.com/findithq/findit/internal/schedule"
	"github.com/findithq/findit/internal/store"
	"github.com/findithq/findit/internal/token"
)

// Upload limits.
const (
	maxUploadBytes  = 20 << 20
	maxReportImages = 5
	maxProofImages  = 3
)

// ItemsHandler handles the item and claim lifecycle endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type reportForm struct {
	ItemType    string `json:"item_type"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type reviewRequest struct {
	Status          string `json:"status"`
	SecurityNotes   string `json:"security_notes"`
	RejectionReason string `json:"rejection_reason"`
}

type verifyRequest struct {
	VerifiedDescription string   `json:"verified_description"`
	UniqueMarks         string   `json:"unique_marks"`
	Questions           []string `json:"questions"`
	ImagesPublic        bool     `json:"images_public"`
}

type claimForm struct {
	Answers                []model.Answer `json:"answers"`
	AdditionalNotes        string         `json:"additional_notes"`
	PreferredContactMethod string         `json:"preferred_contact_method"`
	AppointmentTimeSlot    string         `json:"appointment_time_slot"`
}

type resolveClaimRequest struct {
	VerificationStatus string `json:"verification_status"`
	VerificationNotes  string `json:"verification_notes"`
}

// ReportLost handles POST /api/items/report/lost.
func (h *ItemsHandler) ReportLost(w http.ResponseWriter, r *http.Request) {
	form, files, ok := h.parseReport(w, r)
	if !ok {
		return
	}

	var missing []string
	if form.ItemType == "" {
		missing = append(missing, "item_type")
	}
	if form.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		jsonError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if form.Location == "" {
		form.Location = "Unknown location"
	}

	// A failed upload drops that image, not the whole report.
	images := h.storeUploads(r, files, maxReportImages)

	claims := GetClaims(r.Context())
	item, err := store.CreateLostItem(r.Context(), h.DB, store.ItemReport{
		ItemType:    form.ItemType,
		Description: form.Description,
		Location:    form.Location,
		OccurredAt:  reportTimestamp(form.Date, form.Time),
		Images:      images,
	}, claims.UserID)
	if err != nil {
		slog.Error("failed to report lost item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to report item")
		return
	}

	slog.Info("item reported lost", "item", item.ID, "reporter", claims.UserID)
	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "Item reported as lost successfully",
		"item":    item,
	})
}

// ReportFound handles POST /api/items/report/found. A report by a regular
// user enters as submitted with a handoff token; staff intake goes straight
// to received.
func (h *ItemsHandler) ReportFound(w http.ResponseWriter, r *http.Request) {
	form, files, ok := h.parseReport(w, r)
	if !ok {
		return
	}

	var missing []string
	if form.ItemType == "" {
		missing = append(missing, "item_type")
	}
	if form.Description == "" {
		missing = append(missing, "description")
	}
	if form.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		jsonError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	images := h.storeUploads(r, files, maxReportImages)

	claims := GetClaims(r.Context())
	staff := model.Staff(claims.Role)
	item, err := store.CreateFoundItem(r.Context(), h.DB, store.ItemReport{
		ItemType:    form.ItemType,
		Description: form.Description,
		Location:    form.Location,
		OccurredAt:  reportTimestamp(form.Date, form.Time),
		Images:      images,
	}, claims.UserID, staff)
	if err != nil {
		slog.Error("failed to report found item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to report item")
		return
	}

	message := "Item received by security"
	if !staff {
		message = "Item submitted successfully. Please present this token to the security guard when handing over the item."
	}

	slog.Info("item reported found", "item", item.ID, "finder", claims.UserID, "status", item.Status)
	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": message,
		"item":    item,
		"token":   item.Token,
	})
}

// Review handles PUT /api/items/{id}/review: a guard or officer accepts a
// submitted item into custody or rejects it.
func (h *ItemsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status != model.ItemStatusReceived && req.Status != model.ItemStatusRejected {
		jsonError(w, http.StatusBadRequest, "invalid status update")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.ReviewItem(r.Context(), h.DB, id, req.Status == model.ItemStatusReceived,
		req.SecurityNotes, req.RejectionReason, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if errors.Is(err, store.ErrNotReviewable) {
		jsonError(w, http.StatusConflict, "item cannot be reviewed at this stage")
		return
	}
	if err != nil {
		slog.Error("failed to review item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to review item")
		return
	}

	message := "Item received by security. Pending verification for listing."
	if item.Status == model.ItemStatusRejected {
		message = "Item rejected"
	}

	slog.Info("item reviewed", "item", item.ID, "status", item.Status, "reviewer", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]any{"message": message, "item": item})
}

// Verify handles PUT /api/items/{id}/verify: an officer confirms the item
// and attaches the screening questions claimants must answer.
func (h *ItemsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.VerifyItem(r.Context(), h.DB, id, req.VerifiedDescription, req.UniqueMarks,
		req.Questions, req.ImagesPublic, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if errors.Is(err, store.ErrAlreadyVerified) {
		jsonError(w, http.StatusConflict, "item has already been verified")
		return
	}
	if err != nil {
		slog.Error("failed to verify item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to verify item")
		return
	}

	slog.Info("item verified", "item", item.ID, "officer", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Item has been verified and is now available for claiming",
		"item":    item,
	})
}

// Claim handles POST /api/items/{id}/claim: a claimant files a claim with
// answers to the screening questions and optional proof images.
func (h *ItemsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var form claimForm
	var files []*multipart.FileHeader

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		if answers := r.FormValue("answers"); answers != "" {
			if err := json.Unmarshal([]byte(answers), &form.Answers); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid answers format")
				return
			}
		}
		form.AdditionalNotes = r.FormValue("additional_notes")
		form.PreferredContactMethod = r.FormValue("preferred_contact_method")
		form.AppointmentTimeSlot = r.FormValue("appointment_time_slot")
		files = r.MultipartForm.File["proof_images"]
	} else {
		if err := decodeJSON(r, &form); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if form.PreferredContactMethod != "" && !model.ValidContactMethod(form.PreferredContactMethod) {
		jsonError(w, http.StatusBadRequest, "invalid preferred contact method")
		return
	}

	// Unlike item reports, a failed proof upload aborts the whole claim:
	// proof is evidence, a silently missing file weakens the claim.
	if len(files) > maxProofImages {
		files = files[:maxProofImages]
	}
	var proof []model.Image
	for _, fh := range files {
		img, err := h.storeUpload(r, fh)
		if err != nil {
			slog.Error("failed to store proof image", "error", err)
			jsonError(w, http.StatusBadRequest, "failed to process proof image: "+fh.Filename)
			return
		}
		proof = append(proof, *img)
	}

	claims := GetClaims(r.Context())
	request, err := store.CreateClaim(r.Context(), h.DB, id, claims.UserID, store.ClaimSubmission{
		Answers:                form.Answers,
		ProofImages:            proof,
		AdditionalNotes:        form.AdditionalNotes,
		PreferredContactMethod: form.PreferredContactMethod,
		AppointmentTimeSlot:    form.AppointmentTimeSlot,
	})
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if errors.Is(err, store.ErrNotClaimable) {
		jsonError(w, http.StatusConflict, "this item is not available for claiming")
		return
	}
	if err != nil {
		slog.Error("failed to create claim", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to submit claim")
		return
	}

	slog.Info("claim submitted", "request", request.ID, "item", id, "claimant", claims.UserID)
	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "Claim request submitted successfully. Please present this token to the security office when you visit to collect the item.",
		"request": request,
		"token":   request.Token,
	})
}

// ResolveClaim handles PUT /api/claims/{id}/verify: an officer approves or
// rejects a pending claim. Approval marks the item claimed in the same
// transaction.
func (h *ItemsHandler) ResolveClaim(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req resolveClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VerificationStatus != "approved" && req.VerificationStatus != "rejected" {
		jsonError(w, http.StatusBadRequest, "verification_status must be approved or rejected")
		return
	}

	claims := GetClaims(r.Context())
	approved := req.VerificationStatus == "approved"
	request, err := store.ResolveClaim(r.Context(), h.DB, id, approved, req.VerificationNotes, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "claim request not found")
		return
	}
	if errors.Is(err, store.ErrAlreadyProcessed) {
		jsonError(w, http.StatusConflict, "this claim has already been processed")
		return
	}
	if errors.Is(err, store.ErrNotClaimable) {
		jsonError(w, http.StatusConflict, "this item has already been released to another claimer")
		return
	}
	if err != nil {
		slog.Error("failed to resolve claim", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process claim verification")
		return
	}

	message := "Claim verification failed"
	if approved {
		message = "Claim verified and item has been released to the claimer"
	}

	slog.Info("claim resolved", "request", request.ID, "approved", approved, "officer", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]any{"message": message, "request": request})
}

// CancelClaim handles PUT /api/claims/{id}/cancel: a claimant withdraws
// their own pending claim, releasing its appointment slot.
func (h *ItemsHandler) CancelClaim(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	claims := GetClaims(r.Context())
	request, err := store.CancelClaim(r.Context(), h.DB, id, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "claim request not found")
		return
	}
	if errors.Is(err, store.ErrAlreadyProcessed) {
		jsonError(w, http.StatusConflict, "this claim has already been processed")
		return
	}
	if err != nil {
		slog.Error("failed to cancel claim", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to cancel claim")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{"message": "Claim cancelled", "request": request})
}

// PendingClaims handles GET /api/claims/pending, the officers' work queue.
func (h *ItemsHandler) PendingClaims(w http.ResponseWriter, r *http.Request) {
	requests, err := store.ListPendingClaims(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list pending claims", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list pending claims")
		return
	}
	if err := store.AttachItems(r.Context(), h.DB, requests); err != nil {
		slog.Error("failed to load claim items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list pending claims")
		return
	}
	if requests == nil {
		requests = []model.ItemRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// MyItemTokens handles GET /api/items/my-tokens: the caller's submitted
// items whose handoff tokens are still waiting to be presented.
func (h *ItemsHandler) MyItemTokens(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	items, err := store.ListSubmittedItemsByFinder(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list item tokens", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list item tokens")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// MyClaimTokens handles GET /api/claims/my-tokens: the caller's pending
// claims, with the claimed item joined and image visibility applied.
func (h *ItemsHandler) MyClaimTokens(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	requests, err := store.ListPendingClaimsByClaimant(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list claim tokens", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list claim tokens")
		return
	}
	if err := store.AttachItems(r.Context(), h.DB, requests); err != nil {
		slog.Error("failed to load claim items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list claim tokens")
		return
	}
	for i := range requests {
		if requests[i].Item != nil {
			projectImages(requests[i].Item, claims.Role)
		}
	}
	if requests == nil {
		requests = []model.ItemRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// StatusBucket handles GET /api/items/status/{status}. Which buckets a role
// may read is decided by the capability table.
func (h *ItemsHandler) StatusBucket(w http.ResponseWriter, r *http.Request) {
	status := r.PathValue("status")
	if !model.ValidItemStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status requested")
		return
	}

	claims := GetClaims(r.Context())
	if !policy.CanViewStatus(claims.Role, status) {
		jsonError(w, http.StatusForbidden, "you don't have permission to view this status")
		return
	}

	items, err := store.ListItemsByStatus(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	for i := range items {
		projectImages(&items[i], claims.Role)
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// TokenLookup handles GET /api/items/token/{token}: staff pull up an item
// or claim request by the token presented in person.
func (h *ItemsHandler) TokenLookup(w http.ResponseWriter, r *http.Request) {
	tok := r.PathValue("token")
	kind, err := token.Parse(tok)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid token format")
		return
	}

	claims := GetClaims(r.Context())

	switch kind {
	case token.KindItem:
		item, err := store.GetItemByToken(r.Context(), h.DB, tok)
		if err != nil {
			slog.Error("failed to look up item token", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to look up token")
			return
		}
		if item == nil {
			jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		if !policy.CanLookupItemToken(claims.Role, item.Status) {
			jsonError(w, http.StatusForbidden, "you don't have permission to access this item")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{"item": item})

	case token.KindRequest:
		request, err := store.GetRequestByToken(r.Context(), h.DB, tok)
		if err != nil {
			slog.Error("failed to look up request token", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to look up token")
			return
		}
		if request == nil {
			jsonError(w, http.StatusNotFound, "request not found")
			return
		}
		if !policy.CanLookupRequestToken(claims.Role, request.Status) {
			jsonError(w, http.StatusForbidden, "you don't have permission to access this request")
			return
		}
		item, err := store.GetItem(r.Context(), h.DB, request.ItemID)
		if err != nil {
			slog.Error("failed to load claimed item", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to look up token")
			return
		}
		request.Item = item
		jsonResponse(w, http.StatusOK, map[string]any{"request": request})
	}
}

// TimeSlots handles GET /api/items/time-slots?date=YYYY-MM-DD.
func (h *ItemsHandler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		jsonError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	slots, err := schedule.AvailableSlots(r.Context(), h.DB, date)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	jsonResponse(w, http.StatusOK, slots)
}

// parseReport reads a lost/found report from either a multipart form or a
// JSON body, returning any attached files.
func (h *ItemsHandler) parseReport(w http.ResponseWriter, r *http.Request) (*reportForm, []*multipart.FileHeader, bool) {
	form := &reportForm{}

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
			return nil, nil, false
		}
		form.ItemType = r.FormValue("item_type")
		form.Description = r.FormValue("description")
		form.Location = r.FormValue("location")
		form.Date = r.FormValue("date")
		form.Time = r.FormValue("time")
		return form, r.MultipartForm.File["images"], true
	}

	if err := decodeJSON(r, form); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	return form, nil, true
}

// storeUploads normalizes and stores report images, skipping any file that
// fails. The report goes through with whatever images survived.
func (h *ItemsHandler) storeUploads(r *http.Request, files []*multipart.FileHeader, max int) []model.Image {
	if len(files) > max {
		files = files[:max]
	}
	var images []model.Image
	for _, fh := range files {
		img, err := h.storeUpload(r, fh)
		if err != nil {
			slog.Warn("skipping failed image upload", "file", fh.Filename, "error", err)
			continue
		}
		images = append(images, *img)
	}
	return images
}

// storeUpload normalizes one uploaded file and persists it to blob storage.
func (h *ItemsHandler) storeUpload(r *http.Request, fh *multipart.FileHeader) (*model.Image, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		return nil, err
	}

	blob, err := blobstore.Store(r.Context(), h.DB, processed.Data, processed.MIME)
	if err != nil {
		return nil, err
	}
	return &model.Image{StorageID: blob.StorageID, URL: blob.URL}, nil
}

// projectImages hides an item's images from viewers who may not see
// non-public images. Read-time projection only, storage is untouched.
func projectImages(item *model.Item, role string) {
	if !item.ImagesPublic && !policy.CanSeeHiddenImages(role) {
		item.Images = []model.Image{}
	}
}

// reportTimestamp builds the occurrence time from separate date and time
// fields, falling back to now when absent or unparsable.
func reportTimestamp(date, clock string) time.Time {
	if date == "" || clock == "" {
		return time.Now()
	}
	ts, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+clock, time.Local)
	if err != nil {
		return time.Now()
	}
	return ts
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
