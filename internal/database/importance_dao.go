package database

import (
	"context"
	"log/slog"

	"github.com/protomem/district-tasks/internal/model"
)

type ImportanceDAO struct {
	Logger *slog.Logger
	*DB
}

func NewImportanceDAO(logger *slog.Logger, db *DB) *ImportanceDAO {
	return &ImportanceDAO{
		Logger: logger.With("dao", "importance"),
		DB:     db,
	}
}

func (dao *ImportanceDAO) Find(ctx context.Context) ([]model.EventImportance, error) {
	logger := dao.Logger.With("query", "find")

	query, args, err := dao.Builder.
		Select("*").
		From("event_importances").
		OrderBy("weight DESC").
		ToSql()
	if err != nil {
		return []model.EventImportance{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	importances := make([]model.EventImportance, 0)
	if err := dao.SelectContext(ctx, &importances, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []model.EventImportance{}, err
	}

	logger.Debug("success query execute", "countImportances", len(importances))

	return importances, nil
}

func (dao *ImportanceDAO) Insert(ctx context.Context, level string, weight int) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("event_importances").
		Columns("level", "weight").
		Values(level, weight).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var id model.ID
	if err := dao.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsUniqueViolation(err) {
			return 0, model.NewError("importance", model.ErrExists)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}
