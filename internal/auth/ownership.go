package auth

import "vidshare/internal/domain"

// AuthorizeMutation allows a change to a resource only for its owner.
// Callers must have already established that the resource exists.
func AuthorizeMutation(callerID, ownerID string) error {
	if callerID == "" || callerID != ownerID {
		return domain.ErrForbidden
	}
	return nil
}
