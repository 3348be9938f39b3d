package database

import (
	"context"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/district-tasks/internal/model"
)

type TaskDAO struct {
	Logger *slog.Logger
	*DB
}

func NewTaskDAO(logger *slog.Logger, db *DB) *TaskDAO {
	return &TaskDAO{
		Logger: logger.With("dao", "task"),
		DB:     db,
	}
}

type FindTaskFilter struct {
	// VisibleTo limits district tasks to this district. Nil shows everything.
	VisibleTo *model.ID
}

func (dao *TaskDAO) Find(ctx context.Context, filter FindTaskFilter, opts FindOptions) ([]model.Task, error) {
	logger := dao.Logger.With("query", "find")

	builder := dao.Builder.
		Select("*").
		From("tasks").
		OrderBy("deadline DESC", "created_at DESC")
	if filter.VisibleTo != nil {
		builder = builder.Where(squirrel.Or{
			squirrel.Eq{"district_id": *filter.VisibleTo},
			squirrel.Eq{"district_id": nil},
			squirrel.NotEq{"type": model.TaskDistrict},
		})
	}

	query, args, err := opts.apply(builder).ToSql()
	if err != nil {
		return []model.Task{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	tasks := make([]model.Task, 0, opts.Limit)
	if err := dao.SelectContext(ctx, &tasks, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return []model.Task{}, err
	}

	logger.Debug("success query execute", "countTasks", len(tasks))

	return tasks, nil
}

func (dao *TaskDAO) Get(ctx context.Context, id model.ID) (model.Task, error) {
	logger := dao.Logger.With("query", "get")

	query, args, err := dao.Builder.
		Select("*").
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Task{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var task model.Task
	if err := dao.QueryRowxContext(ctx, query, args...).StructScan(&task); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsNoRows(err) {
			return model.Task{}, model.NewError("task", model.ErrNotFound)
		}

		return model.Task{}, err
	}

	return task, nil
}

type InsertTaskDTO struct {
	Title        string
	Description  string
	Deadline     model.Date
	DeadlineTime *model.TimeOfDay
	EventDate    *model.Date
	EventTime    *model.TimeOfDay
	Type         model.TaskType
	Status       model.TaskStatus
	DistrictID   *model.ID

	CreatedByUsername *string
	CreatedByUserID   *int64
}

func (dao *TaskDAO) Insert(ctx context.Context, dto InsertTaskDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("tasks").
		Columns(
			"title", "description",
			"deadline", "deadline_time", "event_date", "event_time",
			"type", "status", "district_id",
			"created_by_username", "created_by_user_id",
		).
		Values(
			dto.Title, dto.Description,
			dto.Deadline, dto.DeadlineTime, dto.EventDate, dto.EventTime,
			dto.Type, dto.Status, dto.DistrictID,
			dto.CreatedByUsername, dto.CreatedByUserID,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var id model.ID
	if err := dao.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		logger.Warn("failed query execute", "error", err)

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}

// UpdateTaskDTO replaces every editable column, like a submitted edit form.
type UpdateTaskDTO struct {
	Title        string
	Description  string
	Deadline     model.Date
	DeadlineTime *model.TimeOfDay
	EventDate    *model.Date
	EventTime    *model.TimeOfDay
	Status       model.TaskStatus
	DistrictID   *model.ID
}

func (dao *TaskDAO) Update(ctx context.Context, id model.ID, dto UpdateTaskDTO) error {
	logger := dao.Logger.With("query", "update")

	query, args, err := dao.Builder.
		Update("tasks").
		SetMap(map[string]any{
			"title":         dto.Title,
			"description":   dto.Description,
			"deadline":      dto.Deadline,
			"deadline_time": dto.DeadlineTime,
			"event_date":    dto.EventDate,
			"event_time":    dto.EventTime,
			"status":        dto.Status,
			"district_id":   dto.DistrictID,
		}).
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
		return model.NewError("task", model.ErrNotFound)
	}

	logger.Debug("success query execute", "updateId", id)

	return nil
}

func (dao *TaskDAO) Delete(ctx context.Context, id model.ID) error {
	logger := dao.Logger.With("query", "delete")

	query, args, err := dao.Builder.
		Delete("tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	if _, err = dao.ExecContext(ctx, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return err
	}

	logger.Debug("success query execute", "deleteId", id)

	return nil
}

// ToggleSignup removes the sign-up when present and adds it otherwise.
// It reports whether the user is signed up afterwards.
func (dao *TaskDAO) ToggleSignup(ctx context.Context, task, user model.ID) (bool, error) {
	logger := dao.Logger.With("query", "toggleSignup")

	deleteQuery, deleteArgs, err := dao.Builder.
		Delete("task_signups").
		Where(squirrel.Eq{"task_id": task, "user_id": user}).
		ToSql()
	if err != nil {
		return false, err
	}

	insertQuery, insertArgs, err := dao.Builder.
		Insert("task_signups").
		Columns("task_id", "user_id").
		Values(task, user).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}

	tx, err := dao.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	logger.Debug("build query", "sql", deleteQuery, "args", deleteArgs)

	res, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...)
	if err != nil {
		logger.Warn("failed query execute", "error", err)

		return false, err
	}

	signedUp := false
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Debug("build query", "sql", insertQuery, "args", insertArgs)

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			logger.Warn("failed query execute", "error", err)

			if IsForeignKeyViolation(err) {
				return false, model.NewError("task", model.ErrNotFound)
			}

			return false, err
		}
		signedUp = true
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	logger.Debug("success query execute", "taskId", task, "userId", user, "signedUp", signedUp)

	return signedUp, nil
}

// SignedUpTasks returns which of the tasks the user is signed up for.
func (dao *TaskDAO) SignedUpTasks(ctx context.Context, user model.ID, tasks []model.ID) (map[model.ID]bool, error) {
	logger := dao.Logger.With("query", "signedUpTasks")

	query, args, err := dao.Builder.
		Select("task_id").
		From("task_signups").
		Where(squirrel.Eq{"user_id": user, "task_id": tasks}).
		ToSql()
	if err != nil {
		return nil, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var ids []model.ID
	if err := dao.SelectContext(ctx, &ids, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return nil, err
	}

	signed := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		signed[id] = true
	}
	return signed, nil
}

type signupRow struct {
	TaskID     model.ID `db:"task_id"`
	UserID     model.ID `db:"id"`
	Username   string   `db:"username"`
	FirstName  string   `db:"first_name"`
	LastName   string   `db:"last_name"`
	MiddleName string   `db:"middle_name"`
}

// DistrictSignups groups signed-up members of one district by task.
func (dao *TaskDAO) DistrictSignups(ctx context.Context, district model.ID, tasks []model.ID) (map[model.ID][]model.User, error) {
	logger := dao.Logger.With("query", "districtSignups")

	query, args, err := dao.Builder.
		Select(
			"task_signups.task_id",
			"users.id", "users.username",
			"users.first_name", "users.last_name", "users.middle_name",
		).
		From("task_signups").
		Join("users ON users.id = task_signups.user_id").
		Where(squirrel.Eq{"users.district_id": district, "task_signups.task_id": tasks}).
		OrderBy("users.last_name ASC", "users.first_name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var rows []signupRow
	if err := dao.SelectContext(ctx, &rows, query, args...); err != nil {
		logger.Warn("failed query execute", "error", err)

		return nil, err
	}

	signups := make(map[model.ID][]model.User)
	for _, row := range rows {
		signups[row.TaskID] = append(signups[row.TaskID], model.User{
			ID:         row.UserID,
			Username:   row.Username,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			MiddleName: row.MiddleName,
			DistrictID: &district,
		})
	}

	logger.Debug("success query execute", "countSignups", len(rows))

	return signups, nil
}
