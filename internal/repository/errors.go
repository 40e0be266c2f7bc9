package repository

import (
	"errors"
	"fmt"

	"caixapdv/internal/apperrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// isUniqueViolation reports a PostgreSQL unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound turns gorm.ErrRecordNotFound into apperrors.ErrNotFound and
// passes any other error through.
func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s não encontrado: %w", what, id, apperrors.ErrNotFound)
	}
	return err
}
