package auth

import "errors"

var errInvalidHeader = errors.New("invalid authorization header format, expected: Bearer <token>")
