package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/auth"
)

// ownerFromPath resolves the {id} path segment and requires it to be the
// caller. Another user's id answers 404 so ids cannot be probed.
func ownerFromPath(r *http.Request) (uuid.UUID, *AppError) {
	authUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}

	userID, ok := pathUUID(r, "id")
	if !ok || userID != authUserID {
		return uuid.Nil, ErrResourceNotFound
	}

	return userID, nil
}
