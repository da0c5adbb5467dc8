package serviceerrs

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrTokenExpired    = errors.New("token expired")
)
