package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, display_name, role, is_online, last_seen`

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var displayName *string
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&displayName,
		&u.Role,
		&u.IsOnline,
		&u.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	// display_name is nullable in the schema; the profile contract wants
	// the first name as the fallback, never an empty string.
	if displayName != nil && *displayName != "" {
		u.DisplayName = *displayName
	} else {
		u.DisplayName = u.FirstName
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Create inserts a user row. The display name starts equal to the first name
// and the role to "worker"; both can diverge later. No email pre-check here —
// the unique index on email is the single enforcement point, and a violation
// comes back as a plain error.
func (s *UserStore) Create(ctx context.Context, email, passwordHash, firstName, lastName string) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, display_name, role)
		VALUES ($1, $2, $3, $4, $3, 'worker')
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, email, passwordHash, firstName, lastName))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	query := `
		UPDATE users
		SET display_name = $1
		WHERE id = $2`

	if _, err := s.pool.Exec(ctx, query, displayName, id); err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// Delete removes the user and everything that references them, in one
// transaction. The statement order is load-bearing: recipient links must go
// before the messages they point at, and messages before the user row.
// Running these out of order leaves orphaned links or trips foreign keys.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM message_recipients WHERE message_id IN (SELECT id FROM messages WHERE from_user_id = $1)`,
		`DELETE FROM message_recipients WHERE to_user_id = $1`,
		`DELETE FROM messages WHERE from_user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

// SetOnline flips the presence flag and stamps last_seen in one statement,
// returning the updated row so the login response reflects what was just
// persisted.
func (s *UserStore) SetOnline(ctx context.Context, id int64) (*models.User, error) {
	query := `
		UPDATE users
		SET is_online = true, last_seen = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("set user online: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetOffline(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET is_online = false, last_seen = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("set user offline: %w", err)
	}
	return nil
}

func (s *UserStore) ListOnlineIDs(ctx context.Context) ([]int64, error) {
	query := `
		SELECT id
		FROM users
		WHERE is_online = true
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan online user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate online user ids: %w", err)
	}

	return ids, nil
}
