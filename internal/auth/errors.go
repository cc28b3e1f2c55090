package auth

import "errors"

// ErrForbidden indicates the caller's sections do not cover the
// requested resource.
var ErrForbidden = errors.New("auth: forbidden")
