package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/findithq/findit/internal/blobstore"
	"github.com/findithq/findit/internal/model"
	"github.com/findithq/findit/internal/token"
)

// tokenAttempts bounds the regenerate-on-collision loop for handoff tokens.
const tokenAttempts = 5

// ItemReport carries the caller-supplied fields of a lost or found report.
type ItemReport struct {
	ItemType    string
	Description string
	Location    string
	OccurredAt  time.Time
	Images      []model.Image
}

// CreateLostItem records an item reported as lost. Lost reports never carry
// a handoff token; there is nothing to hand over.
func CreateLostItem(ctx context.Context, db *sql.DB, rep ItemReport, reporterID int64) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (item_type, description, location, occurred_at, status, reported_by, images_public)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		rep.ItemType, rep.Description, rep.Location, rep.OccurredAt, model.ItemStatusLost, reporterID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating lost item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := insertItemImages(ctx, db, id, rep.Images); err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// CreateFoundItem records an item reported as found. A report by a regular
// user enters the pipeline as submitted and gets a handoff token to present
// at the security desk; staff intake goes straight to received, no token.
func CreateFoundItem(ctx context.Context, db *sql.DB, rep ItemReport, finderID int64, staff bool) (*model.Item, error) {
	status := model.ItemStatusSubmitted
	if staff {
		status = model.ItemStatusReceived
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (item_type, description, location, occurred_at, status, found_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ItemType, rep.Description, rep.Location, rep.OccurredAt, status, finderID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating found item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := insertItemImages(ctx, db, id, rep.Images); err != nil {
		return nil, err
	}

	if !staff {
		if err := issueItemToken(ctx, db, id); err != nil {
			return nil, err
		}
	}

	return GetItem(ctx, db, id)
}

// issueItemToken assigns a fresh handoff token, regenerating on collision
// against the unique token index.
func issueItemToken(ctx context.Context, db *sql.DB, id int64) error {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		tok, err := token.New(token.KindItem)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `UPDATE items SET token = ? WHERE id = ?`, tok, id)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("setting item token: %w", err)
		}
	}
	return fmt.Errorf("issuing item token: exhausted %d attempts", tokenAttempts)
}

// GetItem returns an item by ID with its images, or nil if absent.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx, itemSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if err := loadItemImages(ctx, db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemByToken returns an item by its handoff token, or nil if absent.
func GetItemByToken(ctx context.Context, db *sql.DB, tok string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx, itemSelect+` WHERE token = ?`, tok))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if err := loadItemImages(ctx, db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListItemsByStatus returns all visible items in a status bucket, newest
// first.
func ListItemsByStatus(ctx context.Context, db *sql.DB, status string) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE status = ? AND is_visible = 1 ORDER BY created_at DESC, id DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(ctx, db, rows)
}

// ListSubmittedItemsByFinder returns a finder's still-submitted items, the
// ones whose tokens are pending presentation at the desk.
func ListSubmittedItemsByFinder(ctx context.Context, db *sql.DB, finderID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE found_by = ? AND status = ? ORDER BY created_at DESC, id DESC`,
		finderID, model.ItemStatusSubmitted,
	)
	if err != nil {
		return nil, fmt.Errorf("listing submitted items: %w", err)
	}
	defer rows.Close()

	return scanItems(ctx, db, rows)
}

// ReviewItem moves a submitted item to received or rejected. The status
// guard lives in the UPDATE itself so a concurrent review cannot apply
// twice.
func ReviewItem(ctx context.Context, db *sql.DB, id int64, accept bool, securityNotes, rejectionReason string, reviewerID int64) (*model.Item, error) {
	var result sql.Result
	var err error

	if accept {
		result, err = db.ExecContext(ctx,
			`UPDATE items
			 SET status = ?, received_by = ?, token_verified_at = CURRENT_TIMESTAMP,
			     security_notes = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = ?`,
			model.ItemStatusReceived, reviewerID, nullable(securityNotes), id, model.ItemStatusSubmitted,
		)
	} else {
		if rejectionReason == "" {
			rejectionReason = "No reason provided"
		}
		result, err = db.ExecContext(ctx,
			`UPDATE items
			 SET status = ?, received_by = ?, token_verified_at = CURRENT_TIMESTAMP,
			     rejection_reason = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = ?`,
			model.ItemStatusRejected, reviewerID, rejectionReason, id, model.ItemStatusSubmitted,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("reviewing item: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		item, err := GetItem(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, ErrNotFound
		}
		return nil, ErrNotReviewable
	}

	// A rejected item never gets listed, so its photos are purged from
	// blob storage rather than kept around unreferenced.
	if !accept {
		if err := purgeItemImages(ctx, db, id); err != nil {
			return nil, err
		}
	}

	return GetItem(ctx, db, id)
}

// purgeItemImages removes an item's photos from blob storage and drops the
// image rows.
func purgeItemImages(ctx context.Context, db *sql.DB, itemID int64) error {
	rows, err := db.QueryContext(ctx,
		`SELECT storage_id FROM item_images WHERE item_id = ?`, itemID,
	)
	if err != nil {
		return fmt.Errorf("listing item images: %w", err)
	}
	defer rows.Close()

	var storageIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning item image: %w", err)
		}
		storageIDs = append(storageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range storageIDs {
		if err := blobstore.Delete(ctx, db, id); err != nil {
			return err
		}
	}

	_, err = db.ExecContext(ctx, `DELETE FROM item_images WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("deleting item images: %w", err)
	}
	return nil
}

// VerifyItem marks an item verified and attaches the screening material the
// officer prepares for claimants. Verifying twice is a conflict.
func VerifyItem(ctx context.Context, db *sql.DB, id int64, verifiedDescription, uniqueMarks string, questions []string, imagesPublic bool, officerID int64) (*model.Item, error) {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encoding questions: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET status = ?, verified_by = ?, verification_date = CURRENT_TIMESTAMP,
		     verified_description = ?, unique_marks = ?, questions = ?, images_public = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != ?`,
		model.ItemStatusVerified, officerID, nullable(verifiedDescription), nullable(uniqueMarks),
		string(questionsJSON), imagesPublic, id, model.ItemStatusVerified,
	)
	if err != nil {
		return nil, fmt.Errorf("verifying item: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		item, err := GetItem(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyVerified
	}

	return GetItem(ctx, db, id)
}

// itemSelect is the shared column list for item queries.
const itemSelect = `
	SELECT id, item_type, description, verified_description, unique_marks, location,
	       occurred_at, status, token, token_verified_at, images_public, is_visible,
	       questions, security_notes, rejection_reason,
	       reported_by, found_by, received_by, verified_by, claimed_by,
	       verification_date, created_at, updated_at
	FROM items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var verifiedDescription, uniqueMarks, token, questions, securityNotes, rejectionReason sql.NullString
	err := row.Scan(
		&item.ID, &item.ItemType, &item.Description, &verifiedDescription, &uniqueMarks,
		&item.Location, &item.OccurredAt, &item.Status, &token, &item.TokenVerifiedAt,
		&item.ImagesPublic, &item.IsVisible, &questions, &securityNotes, &rejectionReason,
		&item.ReportedBy, &item.FoundBy, &item.ReceivedBy, &item.VerifiedBy, &item.ClaimedBy,
		&item.VerificationDate, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.VerifiedDescription = verifiedDescription.String
	item.UniqueMarks = uniqueMarks.String
	item.Token = token.String
	item.SecurityNotes = securityNotes.String
	item.RejectionReason = rejectionReason.String

	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &item.Questions); err != nil {
			return nil, fmt.Errorf("decoding questions: %w", err)
		}
	}

	return item, nil
}

func scanItem(row *sql.Row) (*model.Item, error) {
	item, err := scanItemRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

func scanItems(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		if err := loadItemImages(ctx, db, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func insertItemImages(ctx context.Context, db *sql.DB, itemID int64, images []model.Image) error {
	for i, img := range images {
		_, err := db.ExecContext(ctx,
			`INSERT INTO item_images (item_id, storage_id, url, position) VALUES (?, ?, ?, ?)`,
			itemID, img.StorageID, img.URL, i,
		)
		if err != nil {
			return fmt.Errorf("inserting item image: %w", err)
		}
	}
	return nil
}

func loadItemImages(ctx context.Context, db *sql.DB, item *model.Item) error {
	rows, err := db.QueryContext(ctx,
		`SELECT storage_id, url FROM item_images WHERE item_id = ? ORDER BY position`, item.ID,
	)
	if err != nil {
		return fmt.Errorf("loading item images: %w", err)
	}
	defer rows.Close()

	item.Images = []model.Image{}
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.StorageID, &img.URL); err != nil {
			return fmt.Errorf("scanning item image: %w", err)
		}
		item.Images = append(item.Images, img)
	}
	return rows.Err()
}

// nullable maps an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
