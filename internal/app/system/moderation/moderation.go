// Package moderation implements the two-outcome review pipeline shared by
// NGO verification and camp news approval.
//
// An item starts pending and is reviewed exactly once into either the
// pipeline's published state or rejected. Both outcomes are terminal.
// Repeating the outcome an item already has is accepted as a no-op;
// asking for the other outcome is ErrInvalidTransition.
package moderation

import (
	"errors"
	"fmt"

	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
)

var (
	ErrInvalidTransition = errors.New("item has already been reviewed with a different outcome")
	ErrUnknownStatus     = errors.New("unknown moderation status")
)

// Pipeline describes one moderated item kind.
type Pipeline struct {
	Kind      string // "ngo" or "news", used in logs and audit events
	Published string
}

var (
	NGO  = Pipeline{Kind: "ngo", Published: status.Verified}
	News = Pipeline{Kind: "news", Published: status.Approved}
)

// Validate reports whether target is a legal review outcome for p.
func (p Pipeline) Validate(target string) error {
	if target == p.Published || target == status.Rejected {
		return nil
	}
	return fmt.Errorf("%s: %w: %q", p.Kind, ErrUnknownStatus, target)
}

// Next decides what to do when an item in state current is reviewed to
// target. changed is false when the item already carries target.
func (p Pipeline) Next(current, target string) (changed bool, err error) {
	if err := p.Validate(target); err != nil {
		return false, err
	}
	switch current {
	case status.Pending, "":
		return true, nil
	case target:
		return false, nil
	default:
		return false, fmt.Errorf("%s is %s: %w", p.Kind, current, ErrInvalidTransition)
	}
}

// IsTerminal reports whether s is a final state for p.
func (p Pipeline) IsTerminal(s string) bool {
	return s == p.Published || s == status.Rejected
}

// IsVerifiedNGO reports whether n may author camp announcements.
// Records written before verification_status existed only carry
// is_verified, newer ones may carry only verification_status, so either
// one is sufficient.
func IsVerifiedNGO(n *models.NGO) bool {
	if n == nil {
		return false
	}
	if n.IsVerified != nil && *n.IsVerified {
		return true
	}
	return n.VerificationStatus == status.Verified
}
