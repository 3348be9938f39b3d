package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/protomem/district-tasks/internal/model"
)

const (
	_constraintOneHeadPerDistrict = "users_one_head_per_district"
	_constraintTelegramID         = "users_telegram_id_key"
)

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// userConflict maps a unique violation on users to the matching sentinel.
func userConflict(err error) error {
	switch constraintName(err) {
	case _constraintOneHeadPerDistrict:
		return model.NewError("user", model.ErrDistrictHeadTaken)
	case _constraintTelegramID:
		return model.NewError("user", model.ErrTelegramTaken)
	default:
		return model.NewError("user", model.ErrExists)
	}
}
