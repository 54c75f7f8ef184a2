package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/workdeck/workdeck/internal/common"
	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	query := `SELECT group_id, name, description FROM groups WHERE name = $1`

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&g.ID, &g.Name, &g.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrGroupDoesNotExist
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return g, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Group, error) {
	query := `SELECT group_id, name, description FROM groups ORDER BY group_id`

	rows, err := r.db.QueryContext(ctx, query)
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
