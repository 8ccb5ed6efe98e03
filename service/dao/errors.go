package dao

import (
	"errors"
	"fmt"

	"github.com/viant/approvo/errs"
)

// Common DAO errors. ErrNotFound also matches errs.ErrNotFound.
var (
	ErrNotFound = fmt.Errorf("dao: %w", errs.ErrNotFound)

	ErrInvalidID = errors.New("dao: invalid id")

	ErrNilEntity = errors.New("dao: nil entity")
)

// IsNotFound reports whether err signals a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
