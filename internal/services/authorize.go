package services

import (
	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/models"
)

// Authorize checks that the actor holds one of the required roles. Role
// gating for whole endpoints happens in middleware; operations call this
// (and the ownership checks below) for the rules that depend on the record
// being touched rather than on the route.
func Authorize(actor models.Actor, allowed ...models.AccountRole) error {
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden("role %s is not permitted to perform this operation", actor.Role)
}

// AuthorizeOwner lets staff and administrators act on any record and
// patrons only on their own.
func AuthorizeOwner(actor models.Actor, ownerID int32) error {
	if actor.Role != models.RolePatron {
		return nil
	}
	if actor.ID == ownerID {
		return nil
	}
	return apperrors.Forbidden("account %d may not act on records owned by account %d", actor.ID, ownerID)
}
