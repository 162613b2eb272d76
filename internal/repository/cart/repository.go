package cart

import (
	"time"

	"shopsync/internal/domain"
)

// Repository stores cart lines per user id. Implementations serialize all
// access to a single user's lines.
type Repository interface {
	Update(owner string, fn func(*Lines) error) error
	View(owner string) []domain.CartLine
	Sweep(idle time.Duration) int
	Len() int
}
