package database

import (
	"context"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/protomem/district-tasks/internal/model"
)

type PositionDAO struct {
	Logger *slog.Logger
	*DB
}

func NewPositionDAO(logger *slog.Logger, db *DB) *PositionDAO {
	return &PositionDAO{
		Logger: logger.With("dao", "position"),
		DB:     db,
	}
}

type FindPositionFilter struct {
	// WithoutCapability drops positions carrying the capability.
	WithoutCapability *string
}

func (dao *PositionDAO) Find(ctx context.Context, filter FindPositionFilter) ([]model.Position, error) {
	logger := dao.Logger.With("query", "find")

	builder := dao.Builder.
		Select("*").
		From("positions").
		OrderBy("title ASC")
	if filter.WithoutCapability != nil {
		builder = builder.Where(squirrel.Expr("NOT (? = ANY(capabilities))", *filter.WithoutCapability))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return []model.Position{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	positions := make([]model.Position, 0)
	if err := dao.SelectContext(ctx, &positions, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []model.Position{}, err
	}

	logger.Debug("success query execute", "countPositions", len(positions))

	return positions, nil
}

func (dao *PositionDAO) Get(ctx context.Context, id model.ID) (model.Position, error) {
	logger := dao.Logger.With("query", "get")

	query, args, err := dao.Builder.
		Select("*").
		From("positions").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Position{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var position model.Position
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.StructScan(&position); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsNoRows(err) {
			return model.Position{}, model.NewError("position", model.ErrNotFound)
		}

		return model.Position{}, err
	}

	return position, nil
}

type InsertPositionDTO struct {
	Title        string
	Description  string
	Capabilities []string
}

func (dao *PositionDAO) Insert(ctx context.Context, dto InsertPositionDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	capabilities := pq.StringArray(dto.Capabilities)
	if capabilities == nil {
		capabilities = pq.StringArray{}
	}

	query, args, err := dao.Builder.
		Insert("positions").
		Columns("title", "description", "capabilities").
		Values(dto.Title, dto.Description, capabilities).
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
			return 0, model.NewError("position", model.ErrExists)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}
