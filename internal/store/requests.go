package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/findithq/findit/internal/model"
	"github.com/findithq/findit/internal/token"
)

// ClaimSubmission carries the claimant-supplied fields of a new claim.
type ClaimSubmission struct {
	Answers                []model.Answer
	ProofImages            []model.Image
	AdditionalNotes        string
	PreferredContactMethod string
	AppointmentTimeSlot    string
	RequestedTo            *int64
}

// CreateClaim files a claim request against an item. The item must be in a
// claimable state (verified, or received through staff intake). The request
// gets a handoff token the claimant presents at pickup.
func CreateClaim(ctx context.Context, db *sql.DB, itemID, claimantID int64, sub ClaimSubmission) (*model.ItemRequest, error) {
	item, err := GetItem(ctx, db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if !model.Claimable(item.Status) {
		return nil, ErrNotClaimable
	}

	answersJSON, err := json.Marshal(sub.Answers)
	if err != nil {
		return nil, fmt.Errorf("encoding answers: %w", err)
	}

	contact := sub.PreferredContactMethod
	if contact == "" {
		contact = model.ContactMethodEmail
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO item_requests
		     (item_id, request_type, status, answers, additional_notes,
		      preferred_contact_method, appointment_time_slot, requested_by, requested_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, model.RequestTypeClaim, model.RequestStatusPending, string(answersJSON),
		nullable(sub.AdditionalNotes), contact, nullable(sub.AppointmentTimeSlot),
		claimantID, sub.RequestedTo,
	)
	if err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting claim id: %w", err)
	}

	for i, img := range sub.ProofImages {
		_, err := db.ExecContext(ctx,
			`INSERT INTO request_images (request_id, storage_id, url, position) VALUES (?, ?, ?, ?)`,
			id, img.StorageID, img.URL, i,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting proof image: %w", err)
		}
	}

	if err := issueRequestToken(ctx, db, id); err != nil {
		return nil, err
	}

	return GetRequest(ctx, db, id)
}

// issueRequestToken assigns a fresh handoff token, regenerating on
// collision against the unique token index.
func issueRequestToken(ctx context.Context, db *sql.DB, id int64) error {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		tok, err := token.New(token.KindRequest)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `UPDATE item_requests SET token = ? WHERE id = ?`, tok, id)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("setting request token: %w", err)
		}
	}
	return fmt.Errorf("issuing request token: exhausted %d attempts", tokenAttempts)
}

// GetRequest returns a claim request by ID with its proof images, or nil if
// absent.
func GetRequest(ctx context.Context, db *sql.DB, id int64) (*model.ItemRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx, requestSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	if err := loadProofImages(ctx, db, req); err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequestByToken returns a claim request by its handoff token, or nil if
// absent.
func GetRequestByToken(ctx context.Context, db *sql.DB, tok string) (*model.ItemRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx, requestSelect+` WHERE token = ?`, tok))
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	if err := loadProofImages(ctx, db, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListPendingClaims returns every pending claim, oldest first, for the
// officers' work queue.
func ListPendingClaims(ctx context.Context, db *sql.DB) ([]model.ItemRequest, error) {
	rows, err := db.QueryContext(ctx,
		requestSelect+` WHERE status = ? ORDER BY request_date, id`,
		model.RequestStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending claims: %w", err)
	}
	defer rows.Close()

	return scanRequests(ctx, db, rows)
}

// ListPendingClaimsByClaimant returns a claimant's own pending claims, the
// ones whose tokens are still valid for pickup.
func ListPendingClaimsByClaimant(ctx context.Context, db *sql.DB, claimantID int64) ([]model.ItemRequest, error) {
	rows, err := db.QueryContext(ctx,
		requestSelect+` WHERE requested_by = ? AND status = ? ORDER BY request_date DESC, id DESC`,
		claimantID, model.RequestStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	return scanRequests(ctx, db, rows)
}

// ResolveClaim applies an officer's decision to a pending claim. Approval
// cascades onto the item (claimed, visibility suppressed) in the same
// transaction, so the two writes commit or fail together. Rejection leaves
// the item untouched and claimable by another request.
func ResolveClaim(ctx context.Context, db *sql.DB, id int64, approved bool, notes string, officerID int64) (*model.ItemRequest, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var itemID, claimantID int64
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT item_id, requested_by, status FROM item_requests WHERE id = ?`, id,
	).Scan(&itemID, &claimantID, &status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	if status != model.RequestStatusPending {
		return nil, ErrAlreadyProcessed
	}

	newStatus := model.RequestStatusFailed
	if approved {
		newStatus = model.RequestStatusVerified
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE item_requests
		 SET status = ?, verified_by = ?, verification_notes = ?,
		     verification_date = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		newStatus, officerID, nullable(notes), id, model.RequestStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving claim: %w", err)
	}

	if approved {
		// The status guard keeps a second approval off an already-claimed
		// item: at most one claim per item ever reaches verified.
		result, err := tx.ExecContext(ctx,
			`UPDATE items
			 SET status = ?, claimed_by = ?, verified_by = ?, is_visible = 0,
			     updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status IN (?, ?)`,
			model.ItemStatusClaimed, claimantID, officerID, itemID,
			model.ItemStatusVerified, model.ItemStatusReceived,
		)
		if err != nil {
			return nil, fmt.Errorf("claiming item: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			// Abort so the approval never half-applies. The item is either
			// gone or no longer in a claimable state.
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM items WHERE id = ?`, itemID,
			).Scan(&status)
			if err == sql.ErrNoRows {
				return nil, ErrNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("getting item: %w", err)
			}
			return nil, ErrNotClaimable
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim resolution: %w", err)
	}

	return GetRequest(ctx, db, id)
}

// CancelClaim withdraws a claimant's own pending claim.
func CancelClaim(ctx context.Context, db *sql.DB, id, claimantID int64) (*model.ItemRequest, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE item_requests
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND requested_by = ? AND status = ?`,
		model.RequestStatusCancelled, id, claimantID, model.RequestStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling claim: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		req, err := GetRequest(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if req == nil || req.RequestedBy != claimantID {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyProcessed
	}

	return GetRequest(ctx, db, id)
}

// requestSelect is the shared column list for claim request queries.
const requestSelect = `
	SELECT id, item_id, request_type, status, token, answers, additional_notes,
	       preferred_contact_method, appointment_time_slot, request_date,
	       requested_by, requested_to, verified_by, verification_notes,
	       verification_date, created_at, updated_at
	FROM item_requests`

func scanRequestRow(row rowScanner) (*model.ItemRequest, error) {
	req := &model.ItemRequest{}
	var token, answers, additionalNotes, appointmentTimeSlot, verificationNotes sql.NullString
	err := row.Scan(
		&req.ID, &req.ItemID, &req.RequestType, &req.Status, &token, &answers,
		&additionalNotes, &req.PreferredContactMethod, &appointmentTimeSlot,
		&req.RequestDate, &req.RequestedBy, &req.RequestedTo, &req.VerifiedBy,
		&verificationNotes, &req.VerificationDate, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Token = token.String
	req.AdditionalNotes = additionalNotes.String
	req.AppointmentTimeSlot = appointmentTimeSlot.String
	req.VerificationNotes = verificationNotes.String

	if answers.Valid && answers.String != "" {
		if err := json.Unmarshal([]byte(answers.String), &req.Answers); err != nil {
			return nil, fmt.Errorf("decoding answers: %w", err)
		}
	}

	return req, nil
}

func scanRequest(row *sql.Row) (*model.ItemRequest, error) {
	req, err := scanRequestRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return req, nil
}

func scanRequests(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]model.ItemRequest, error) {
	var reqs []model.ItemRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		reqs = append(reqs, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reqs {
		if err := loadProofImages(ctx, db, &reqs[i]); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func loadProofImages(ctx context.Context, db *sql.DB, req *model.ItemRequest) error {
	rows, err := db.QueryContext(ctx,
		`SELECT storage_id, url FROM request_images WHERE request_id = ? ORDER BY position`, req.ID,
	)
	if err != nil {
		return fmt.Errorf("loading proof images: %w", err)
	}
	defer rows.Close()

	req.ProofImages = []model.Image{}
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.StorageID, &img.URL); err != nil {
			return fmt.Errorf("scanning proof image: %w", err)
		}
		req.ProofImages = append(req.ProofImages, img)
	}
	return rows.Err()
}

// AttachItems populates the joined Item on each request, for staff views.
func AttachItems(ctx context.Context, db *sql.DB, reqs []model.ItemRequest) error {
	for i := range reqs {
		item, err := GetItem(ctx, db, reqs[i].ItemID)
		if err != nil {
			return err
		}
		reqs[i].Item = item
	}
	return nil
}
