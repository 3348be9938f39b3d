package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/district-tasks/internal/model"
)

type DistrictDAO struct {
	Logger *slog.Logger
	*DB
}

func NewDistrictDAO(logger *slog.Logger, db *DB) *DistrictDAO {
	return &DistrictDAO{
		Logger: logger.With("dao", "district"),
		DB:     db,
	}
}

func (dao *DistrictDAO) Find(ctx context.Context) ([]model.District, error) {
	logger := dao.Logger.With("query", "find")

	query, args, err := dao.Builder.
		Select("*").
		From("districts").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return []model.District{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	districts := make([]model.District, 0)
	if err := dao.SelectContext(ctx, &districts, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []model.District{}, err
	}

	logger.Debug("success query execute", "countDistricts", len(districts))

	return districts, nil
}

func (dao *DistrictDAO) Get(ctx context.Context, id model.ID) (model.District, error) {
	logger := dao.Logger.With("query", "get")

	query, args, err := dao.Builder.
		Select("*").
		From("districts").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.District{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var district model.District
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.StructScan(&district); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsNoRows(err) {
			return model.District{}, model.NewError("district", model.ErrNotFound)
		}

		return model.District{}, err
	}

	return district, nil
}

type InsertDistrictDTO struct {
	Name string
	Code string
}

func (dao *DistrictDAO) Insert(ctx context.Context, dto InsertDistrictDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("districts").
		Columns("name", "code").
		Values(dto.Name, dto.Code).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var id model.ID
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&id); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsUniqueViolation(err) {
			return 0, model.NewError("district", model.ErrExists)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}

type UpdateDistrictDTO struct {
	Name      *string
	Code      *string
	TeamPhoto *string
}

func (dao *DistrictDAO) Update(ctx context.Context, id model.ID, dto UpdateDistrictDTO) error {
	logger := dao.Logger.With("query", "update")

	data := make(map[string]any, 4)
	data["updated_at"] = time.Now()
	if dto.Name != nil {
		data["name"] = *dto.Name
	}
	if dto.Code != nil {
		data["code"] = *dto.Code
	}
	if dto.TeamPhoto != nil {
		data["team_photo"] = *dto.TeamPhoto
	}

	query, args, err := dao.Builder.
		Update("districts").
		SetMap(data).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	res, err := dao.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsUniqueViolation(err) {
			return model.NewError("district", model.ErrExists)
		}

		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewError("district", model.ErrNotFound)
	}

	logger.Debug("success query execute", "updateId", id, "countUpdatedFields", len(data))

	return nil
}
