package storage

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrTokenAlreadyExists = errors.New("refresh token already exists")
)
