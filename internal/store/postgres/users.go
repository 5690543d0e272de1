package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidshare/internal/domain"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `u.id, u.email, u.username, u.email_verified, u.created_at, u.updated_at`

func scanUser(row pgx.Row, extra ...any) (domain.User, error) {
	var (
		u      domain.User
		idUUID pgtype.UUID
	)
	dest := append([]any{&idUUID, &u.Email, &u.Username, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error) {
	const q = `
		INSERT INTO users AS u (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, email, username, passwordHash))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	userID, ok := parseUUID(id)
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}

	const q = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userColumns + `, u.password_hash FROM users u WHERE u.email = $1`

	var passwordHash string
	u, err := scanUser(s.pool.QueryRow(ctx, q, email), &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return domain.UserWithPassword{User: u, PasswordHash: passwordHash}, nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, subject string) (domain.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM external_accounts ea
		JOIN users u ON u.id = ea.user_id
		WHERE ea.provider = $1 AND ea.subject = $2
	`

	u, err := scanUser(s.pool.QueryRow(ctx, q, provider, subject))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by external account: %w", err)
	}
	return u, nil
}

// CreateUserWithExternalAccount inserts a verified user and its provider link
// in one transaction.
func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, provider, subject, email, username, passwordHash string) (domain.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertUser = `
		INSERT INTO users AS u (email, username, password_hash, email_verified)
		VALUES ($1, $2, $3, true)
		RETURNING ` + userColumns

	u, err := scanUser(tx.QueryRow(ctx, insertUser, email, username, passwordHash))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}

	if err := insertExternalAccount(ctx, tx, u.ID, provider, subject); err != nil {
		return domain.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit tx: %w", err)
	}
	return u, nil
}

func (s *UsersStore) LinkExternalAccount(ctx context.Context, userID, provider, subject string) error {
	return insertExternalAccount(ctx, s.pool, userID, provider, subject)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertExternalAccount(ctx context.Context, db execer, userID, provider, subject string) error {
	const q = `
		INSERT INTO external_accounts (provider, subject, user_id)
		VALUES ($1, $2, $3)
	`
	uid, ok := parseUUID(userID)
	if !ok {
		return domain.ErrNotFound
	}
	if _, err := db.Exec(ctx, q, provider, subject, uid); err != nil {
		if code, _ := pgErrorCode(err); code == codeUniqueViolation {
			return domain.ErrExternalAccountExists
		}
		if notFound := notFoundIfMissingFK(err); notFound != nil {
			return notFound
		}
		return fmt.Errorf("link external account: %w", err)
	}
	return nil
}

func mapUserWriteError(err error) error {
	code, constraint := pgErrorCode(err)
	if code == codeUniqueViolation {
		switch constraint {
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", constraint, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
