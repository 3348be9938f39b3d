package database

import (
	"context"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/district-tasks/internal/model"
)

type EventDAO struct {
	Logger *slog.Logger
	*DB
}

func NewEventDAO(logger *slog.Logger, db *DB) *EventDAO {
	return &EventDAO{
		Logger: logger.With("dao", "event"),
		DB:     db,
	}
}

func (dao *EventDAO) Find(ctx context.Context, opts FindOptions) ([]model.Event, error) {
	logger := dao.Logger.With("query", "find")

	query, args, err := opts.apply(dao.Builder.
		Select("*").
		From("events").
		OrderBy("date DESC", "id DESC"),
	).ToSql()
	if err != nil {
		return []model.Event{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	events := make([]model.Event, 0, opts.Limit)
	if err := dao.SelectContext(ctx, &events, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []model.Event{}, err
	}

	logger.Debug("success query execute", "countEvents", len(events))

	return events, nil
}

func (dao *EventDAO) Get(ctx context.Context, id model.ID) (model.Event, error) {
	logger := dao.Logger.With("query", "get")

	query, args, err := dao.Builder.
		Select("*").
		From("events").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Event{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var event model.Event
	if err := dao.QueryRowxContext(ctx, query, args...).StructScan(&event); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsNoRows(err) {
			return model.Event{}, model.NewError("event", model.ErrNotFound)
		}

		return model.Event{}, err
	}

	return event, nil
}

type InsertEventDTO struct {
	Name              string
	Date              model.Date
	Type              model.EventType
	ImportanceID      *model.ID
	ParticipantsCount int
}

func (dao *EventDAO) Insert(ctx context.Context, dto InsertEventDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("events").
		Columns("name", "date", "event_type", "importance_id", "participants_count").
		Values(dto.Name, dto.Date, dto.Type, dto.ImportanceID, dto.ParticipantsCount).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var id model.ID
	if err := dao.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsForeignKeyViolation(err) {
			return 0, model.NewError("importance", model.ErrNotFound)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}

func (dao *EventDAO) Delete(ctx context.Context, id model.ID) error {
	logger := dao.Logger.With("query", "delete")

	query, args, err := dao.Builder.
		Delete("events").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	res, err := dao.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Warn("failed query execute", "error", err)

		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewError("event", model.ErrNotFound)
	}

	logger.Debug("success query execute", "deleteId", id)

	return nil
}
