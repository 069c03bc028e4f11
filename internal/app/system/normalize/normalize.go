// Package normalize canonicalizes user input before it is validated or
// stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/donorlink/internal/app/system/status"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses internal runs of whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BloodGroup uppercases a blood group and removes spaces, so " ab + "
// becomes "AB+". The result is not validated.
func BloodGroup(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// Status lowercases and trims a moderation status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ReviewAction maps the final path segment of a moderation route to the
// status it requests for the given item kind ("ngo" or "news"). It returns
// "" for unknown actions.
func ReviewAction(kind, action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		if kind == "ngo" {
			return status.Verified
		}
		return status.Approved
	case "reject":
		return status.Rejected
	default:
		return ""
	}
}
