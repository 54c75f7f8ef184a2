package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workdeck/workdeck/internal/common"
	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/server/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique-constraint
// breaches (users_email_key).
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `user_id, email, display_name, password_hash, timezone, auth_token, auth_token_created, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var tokenCreated sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Timezone, &user.AuthToken, &tokenCreated, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tokenCreated.Valid {
		user.AuthTokenCreated = tokenCreated.Time
	}
	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (email, display_name, password_hash, timezone)
         VALUES ($1, $2, $3, $4)
		 RETURNING user_id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, user.PasswordHash, user.Timezone).
		Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET email = $1, display_name = $2, password_hash = $3, timezone = $4,
		     auth_token = $5, auth_token_created = $6
		 WHERE user_id = $7
		 `

	var tokenCreated sql.NullTime
	if !user.AuthTokenCreated.IsZero() {
		tokenCreated = sql.NullTime{Time: user.AuthTokenCreated, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		user.Email, user.DisplayName, user.PasswordHash, user.Timezone,
		user.AuthToken, tokenCreated, user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrUserAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrUserDoesNotExist
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE display_name = $1`
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserDoesNotExist
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// List returns all users ordered by display name; id breaks ties so the
// order is stable.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY display_name ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user := &models.User{}
		var tokenCreated sql.NullTime
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
			&user.Timezone, &user.AuthToken, &tokenCreated, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if tokenCreated.Valid {
			user.AuthTokenCreated = tokenCreated.Time
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) AttachGroup(ctx context.Context, userID, groupID int64) error {
	query :=
		`INSERT INTO user_groups (user_id, group_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GroupsOf(ctx context.Context, userID int64) ([]*models.Group, error) {
	query :=
		`SELECT g.group_id, g.name, g.description
		 FROM groups g
		 JOIN user_groups ug ON ug.group_id = g.group_id
		 WHERE ug.user_id = $1
		 ORDER BY g.group_id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
