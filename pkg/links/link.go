package links

import (
	"time"

	"github.com/google/uuid"
)

// Link is one social link slot on a user's public page. A slot belongs to
// exactly one user and is either enabled (shown) or disabled (hidden).
//
// Disabling is the only mechanism that reduces a user's enabled count below
// their plan cap; slots are never deleted as a side effect of entitlement
// shrinkage, so a later upgrade restores them losslessly.
type Link struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
