package repositories

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when a write violates a unique constraint, e.g. a
// second pending membership request or a second active follow created
// concurrently.
var ErrDuplicate = errors.New("duplicate record")

const pqUniqueViolation = pq.ErrorCode("23505")

// wrapWriteErr wraps err with msg, tagging unique violations with ErrDuplicate.
func wrapWriteErr(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w: %s", msg, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
