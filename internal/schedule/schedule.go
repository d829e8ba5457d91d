// Package schedule computes pickup appointment slots for claim requests.
// Availability is advisory: a slot is taken only while a pending claim
// holds its exact slot string, and nothing stops two claimants booking the
// same slot concurrently. Conflicts are resolved by staff at the desk.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/findithq/findit/internal/model"
)

// Business hours: half-hour slots from firstHour:00 through lastHour:30.
const (
	firstHour = 9
	lastHour  = 16
)

// Slot is one bookable half-hour appointment.
type Slot struct {
	Time      string `json:"time"`
	Slot      string `json:"slot"`
	Available bool   `json:"available"`
}

// AvailableSlots returns every slot for the given calendar date
// (YYYY-MM-DD) with its availability flag.
func AvailableSlots(ctx context.Context, db *sql.DB, date string) ([]Slot, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	booked, err := bookedSlots(ctx, db, date)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for hour := firstHour; hour <= lastHour; hour++ {
		for _, minute := range []int{0, 30} {
			slot := fmt.Sprintf("%sT%02d:%02d", date, hour, minute)
			slots = append(slots, Slot{
				Time:      fmt.Sprintf("%d:%02d", hour, minute),
				Slot:      slot,
				Available: !booked[slot],
			})
		}
	}
	return slots, nil
}

// bookedSlots returns the slot strings held by pending claims on the date.
// Resolved and cancelled claims release their slots.
func bookedSlots(ctx context.Context, db *sql.DB, date string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT appointment_time_slot FROM item_requests
		 WHERE status = ? AND appointment_time_slot LIKE ? || '%'`,
		model.RequestStatusPending, date,
	)
	if err != nil {
		return nil, fmt.Errorf("querying booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]bool)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scanning booked slot: %w", err)
		}
		booked[slot] = true
	}
	return booked, rows.Err()
}
