package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStatusConflict is returned when a JobPatch.ExpectStatus precondition does not hold.
var ErrStatusConflict = errors.New("status changed concurrently")

func wrapNotFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}
