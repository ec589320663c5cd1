// FilePath: internal/repository/postgres/postgres.area.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
)

type AreaRepo struct {
	PostgresBaseRepo
}

func NewAreaRepository(db database.DB) *AreaRepo {
	repo := &PostgresBaseRepo{db: db}
	return &AreaRepo{PostgresBaseRepo: *repo}
}

func (r *AreaRepo) Get(ctx context.Context, id string) (*models.Area, error) {
	area := &models.Area{}
	query := `SELECT * FROM areas WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, area, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("area not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get area", err)
	}
	return area, nil
}
