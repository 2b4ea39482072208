package storage

import "errors"

// ErrTagNotFound is returned by tag operations on an unknown tag name.
var ErrTagNotFound = errors.New("tag not found")
