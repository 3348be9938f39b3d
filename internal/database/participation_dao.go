package database

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/district-tasks/internal/model"
)

type ParticipationDAO struct {
	Logger *slog.Logger
	*DB
}

func NewParticipationDAO(logger *slog.Logger, db *DB) *ParticipationDAO {
	return &ParticipationDAO{
		Logger: logger.With("dao", "participation"),
		DB:     db,
	}
}

type InsertParticipationDTO struct {
	UserID  model.ID
	EventID model.ID
	Role    model.ParticipationRole
	Status  string
}

func (dao *ParticipationDAO) Insert(ctx context.Context, dto InsertParticipationDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("participations").
		Columns("user_id", "event_id", "role", "status").
		Values(dto.UserID, dto.EventID, dto.Role, dto.Status).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var id model.ID
	if err := dao.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		logger.Warn("failed query execute", "error", err)

		switch {
		case IsUniqueViolation(err):
			return 0, model.NewError("participation", model.ErrExists)
		case IsForeignKeyViolation(err):
			return 0, model.NewError("participation", model.ErrNotFound)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}

func (dao *ParticipationDAO) Delete(ctx context.Context, id model.ID) error {
	logger := dao.Logger.With("query", "delete")

	query, args, err := dao.Builder.
		Delete("participations").
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
		return model.NewError("participation", model.ErrNotFound)
	}

	logger.Debug("success query execute", "deleteId", id)

	return nil
}

// ParticipationRecord is a participation with its event and importance.
type ParticipationRecord struct {
	model.Participation

	EventName string          `db:"event_name"`
	EventDate model.Date      `db:"event_date"`
	EventType model.EventType `db:"event_type"`

	ImportanceLevel  sql.NullString `db:"importance_level"`
	ImportanceWeight sql.NullInt64  `db:"importance_weight"`
}

func (dao *ParticipationDAO) FindByUser(ctx context.Context, user model.ID) ([]ParticipationRecord, error) {
	logger := dao.Logger.With("query", "findByUser")

	query, args, err := dao.Builder.
		Select(
			"participations.*",
			"events.name AS event_name",
			"events.date AS event_date",
			"events.event_type",
			"event_importances.level AS importance_level",
			"event_importances.weight AS importance_weight",
		).
		From("participations").
		Join("events ON events.id = participations.event_id").
		LeftJoin("event_importances ON event_importances.id = events.importance_id").
		Where(squirrel.Eq{"participations.user_id": user}).
		OrderBy("events.date DESC", "participations.id DESC").
		ToSql()
	if err != nil {
		return []ParticipationRecord{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	records := make([]ParticipationRecord, 0)
	if err := dao.SelectContext(ctx, &records, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []ParticipationRecord{}, err
	}

	logger.Debug("success query execute", "countParticipations", len(records))

	return records, nil
}
