package domain

import "errors"

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrUserNotFound   = errors.New("user not found")
)
