// Package v1 provides chat business logic for API version 1.
//
// Errors returned by this package wrap one of the sentinels below with
// fmt.Errorf("%w"); handlers map them to HTTP statuses with errors.Is:
//
//	switch {
//	case errors.Is(err, logicv1.ErrUserNotFound):
//	    c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
//	case errors.Is(err, logicv1.ErrUserExists):
//	    c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import "errors"

var (
	// ErrUserNotFound indicates the requested user does not exist.
	// HTTP Status: 404 Not Found
	ErrUserNotFound = errors.New("user not found")

	// ErrSenderNotFound indicates a message references an unknown author.
	// HTTP Status: 400 Bad Request
	ErrSenderNotFound = errors.New("sender not found")

	// ErrUserExists indicates the email is already registered.
	// HTTP Status: 409 Conflict
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidEntryType indicates an unknown message type.
	// HTTP Status: 400 Bad Request
	ErrInvalidEntryType = errors.New("invalid message type")
)
