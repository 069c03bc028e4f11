// Package status holds the moderation status values stored on NGOs and
// camp announcements.
package status

const (
	Pending  = "pending"
	Verified = "verified" // NGO published state
	Approved = "approved" // camp news published state
	Rejected = "rejected"
)
