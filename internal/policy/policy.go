// Package policy is the single capability table for the service: which role
// may trigger which lifecycle action, which status buckets each role may
// read, and which tokens each role may look up. Handlers consult this table
// instead of carrying their own role checks.
package policy

import "github.com/findithq/findit/internal/model"

// Action names a gated operation.
type Action string

const (
	ActionReportLost   Action = "report-lost"
	ActionReportFound  Action = "report-found"
	ActionReviewItem   Action = "review-item"
	ActionVerifyItem   Action = "verify-item"
	ActionClaimItem    Action = "claim-item"
	ActionVerifyClaim  Action = "verify-claim"
	ActionListPending  Action = "list-pending-claims"
	ActionManageUsers  Action = "manage-users"
	ActionViewTimeSlot Action = "view-time-slots"
)

// capabilities maps each action to the roles allowed to perform it.
var capabilities = map[Action][]string{
	ActionReportLost:   {model.RoleUser, model.RoleSecurityGuard, model.RoleSecurityOfficer, model.RoleAdmin},
	ActionReportFound:  {model.RoleUser, model.RoleSecurityGuard, model.RoleSecurityOfficer, model.RoleAdmin},
	ActionReviewItem:   {model.RoleSecurityGuard, model.RoleSecurityOfficer},
	ActionVerifyItem:   {model.RoleSecurityOfficer},
	ActionClaimItem:    {model.RoleUser, model.RoleSecurityGuard, model.RoleSecurityOfficer, model.RoleAdmin},
	ActionVerifyClaim:  {model.RoleSecurityOfficer},
	ActionListPending:  {model.RoleSecurityOfficer, model.RoleAdmin},
	ActionManageUsers:  {model.RoleAdmin},
	ActionViewTimeSlot: {model.RoleUser, model.RoleSecurityGuard, model.RoleSecurityOfficer, model.RoleAdmin},
}

// Allowed reports whether role may perform action. Unknown roles and
// unknown actions fail closed.
func Allowed(role string, action Action) bool {
	for _, r := range capabilities[action] {
		if r == role {
			return true
		}
	}
	return false
}

// statusBuckets maps each role to the item status buckets it may read.
// Officers and admins are unrestricted (nil means all).
var statusBuckets = map[string][]string{
	model.RoleUser: {
		model.ItemStatusLost, model.ItemStatusVerified, model.ItemStatusReceived,
	},
	model.RoleSecurityGuard: {
		model.ItemStatusLost, model.ItemStatusVerified, model.ItemStatusReceived,
		model.ItemStatusSubmitted,
	},
	model.RoleSecurityOfficer: nil,
	model.RoleAdmin:           nil,
}

// CanViewStatus reports whether role may read the given item status bucket.
func CanViewStatus(role, status string) bool {
	buckets, ok := statusBuckets[role]
	if !ok {
		return false
	}
	if buckets == nil {
		return true
	}
	for _, s := range buckets {
		if s == status {
			return true
		}
	}
	return false
}

// CanLookupItemToken reports whether role may fetch an item in the given
// status by its handoff token. Guards handle the physical intake of
// submitted items; officers and admins may pull up any item.
func CanLookupItemToken(role, itemStatus string) bool {
	switch role {
	case model.RoleSecurityGuard:
		return itemStatus == model.ItemStatusSubmitted
	case model.RoleSecurityOfficer, model.RoleAdmin:
		return true
	default:
		return false
	}
}

// CanLookupRequestToken reports whether role may fetch a claim request in
// the given status by its token. Officers handle pending pickups; admins
// may pull up any request.
func CanLookupRequestToken(role, requestStatus string) bool {
	switch role {
	case model.RoleSecurityOfficer:
		return requestStatus == model.RequestStatusPending
	case model.RoleAdmin:
		return true
	default:
		return false
	}
}

// CanSeeHiddenImages reports whether role may see images of items whose
// images are not public. This is a read-time projection: non-privileged
// viewers get an empty image list, the stored data is untouched.
func CanSeeHiddenImages(role string) bool {
	return role == model.RoleSecurityOfficer || role == model.RoleAdmin
}
