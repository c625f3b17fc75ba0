package repository

import (
	"context"

	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
)

// Every method takes context.Context first — it's idiomatic Go for anything
// that does I/O. If the HTTP request is cancelled, the DB query is cancelled
// with it.

// UserRepository handles user rows and their presence flags.
type UserRepository interface {
	// List returns all users ordered by id ascending.
	// Returns empty slice (not nil) so JSON serializes to [] not null.
	List(ctx context.Context) ([]models.User, error)

	// GetByID returns a user by id. Returns nil, nil if not found.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail looks up a user by email. Used for login.
	// Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Create inserts a user with the given bcrypt hash. The display name
	// defaults to the first name and the role to "worker". Email uniqueness
	// is enforced only by the store's unique index; a duplicate surfaces
	// as an error here.
	Create(ctx context.Context, email, passwordHash, firstName, lastName string) (*models.User, error)

	// UpdateDisplayName changes only the display name. Updating a
	// nonexistent id is not an error.
	UpdateDisplayName(ctx context.Context, id int64, displayName string) error

	// Delete removes the user together with every message they authored and
	// every recipient link that names them, in one transaction. The steps
	// run in dependency order so no orphaned link or dangling author
	// reference can survive.
	Delete(ctx context.Context, id int64) error

	// SetOnline marks the user online and stamps last_seen, returning the
	// updated row. Returns nil, nil if the id does not exist.
	SetOnline(ctx context.Context, id int64) (*models.User, error)

	// SetOffline clears the online flag and stamps last_seen.
	SetOffline(ctx context.Context, id int64) error

	// ListOnlineIDs returns the ids of all users currently marked online.
	// Used by the presence sweeper.
	ListOnlineIDs(ctx context.Context) ([]int64, error)
}

// MessageRepository handles message persistence and the per-user
// conversation query.
type MessageRepository interface {
	// Send stores one message row plus one recipient link per entry of
	// toUserIDs, atomically. Duplicate ids in toUserIDs produce duplicate
	// links — this operation does not deduplicate.
	Send(ctx context.Context, fromUserID int64, toUserIDs []int64, content string, isBroadcast bool) (*models.Message, error)

	// ListForUser returns one row per (message, recipient) pair for every
	// message the user authored or received, ordered by creation time
	// ascending. The caller collapses the rows into conversation entries.
	ListForUser(ctx context.Context, userID int64) ([]models.ConversationRow, error)
}
