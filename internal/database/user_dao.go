package database

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/protomem/district-tasks/internal/model"
)

type UserDAO struct {
	Logger *slog.Logger
	*DB
}

func NewUserDAO(logger *slog.Logger, db *DB) *UserDAO {
	return &UserDAO{
		Logger: logger.With("dao", "user"),
		DB:     db,
	}
}

var _userColumns = []string{
	"users.*",
	"districts.name AS district_name",
	"districts.code AS district_code",
	"districts.team_photo AS district_team_photo",
	"positions.title AS position_title",
	"positions.description AS position_description",
	"positions.capabilities AS position_capabilities",
}

// userRow is a user joined with its district and position.
type userRow struct {
	model.User

	DistrictName      sql.NullString `db:"district_name"`
	DistrictCode      sql.NullString `db:"district_code"`
	DistrictTeamPhoto sql.NullString `db:"district_team_photo"`

	PositionTitle        sql.NullString `db:"position_title"`
	PositionDescription  sql.NullString `db:"position_description"`
	PositionCapabilities pq.StringArray `db:"position_capabilities"`
}

func (row userRow) toModel() model.User {
	user := row.User

	if user.DistrictID != nil && row.DistrictName.Valid {
		user.District = &model.District{
			ID:   *user.DistrictID,
			Name: row.DistrictName.String,
			Code: row.DistrictCode.String,
		}
		if row.DistrictTeamPhoto.Valid {
			user.District.TeamPhoto = &row.DistrictTeamPhoto.String
		}
	}

	if user.PositionID != nil && row.PositionTitle.Valid {
		user.Position = &model.Position{
			ID:           *user.PositionID,
			Title:        row.PositionTitle.String,
			Description:  row.PositionDescription.String,
			Capabilities: row.PositionCapabilities,
		}
	}

	return user
}

func (dao *UserDAO) selectUsers() squirrel.SelectBuilder {
	return dao.Builder.
		Select(_userColumns...).
		From("users").
		LeftJoin("districts ON districts.id = users.district_id").
		LeftJoin("positions ON positions.id = users.position_id")
}

type FindUserFilter struct {
	ExcludeID  *model.ID
	DistrictID *model.ID
}

func (dao *UserDAO) Find(ctx context.Context, filter FindUserFilter, opts FindOptions) ([]model.User, error) {
	logger := dao.Logger.With("query", "find")

	builder := dao.selectUsers().OrderBy("users.last_name ASC", "users.first_name ASC", "users.id ASC")
	if filter.ExcludeID != nil {
		builder = builder.Where(squirrel.NotEq{"users.id": *filter.ExcludeID})
	}
	if filter.DistrictID != nil {
		builder = builder.Where(squirrel.Eq{"users.district_id": *filter.DistrictID})
	}

	query, args, err := opts.apply(builder).ToSql()
	if err != nil {
		return []model.User{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	rows := make([]userRow, 0, opts.Limit)
	if err := dao.SelectContext(ctx, &rows, query, args...); err != nil {
		if IsNoRows(err) {
			logger.Debug("success query execute", "countUsers", 0)
			return []model.User{}, nil
		}

		logger.Warn("failed query execute", "error", err)

		return []model.User{}, err
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}

	logger.Debug("success query execute", "countUsers", len(users))

	return users, nil
}

func (dao *UserDAO) Get(ctx context.Context, id model.ID) (model.User, error) {
	return dao.getBy(ctx, "get", squirrel.Eq{"users.id": id})
}

func (dao *UserDAO) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return dao.getBy(ctx, "getByUsername", squirrel.Expr("lower(users.username) = ?", strings.ToLower(username)))
}

func (dao *UserDAO) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	return dao.getBy(ctx, "getByTelegramId", squirrel.Eq{"users.telegram_id": telegramID})
}

func (dao *UserDAO) getBy(ctx context.Context, name string, pred squirrel.Sqlizer) (model.User, error) {
	logger := dao.Logger.With("query", name)

	query, args, err := dao.selectUsers().
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var row userRow
	if err := dao.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		logger.Warn("failed query execute", "error", err)

		if IsNoRows(err) {
			return model.User{}, model.NewError("user", model.ErrNotFound)
		}

		return model.User{}, err
	}

	logger.Debug("success query execute", "userId", row.ID)

	return row.toModel(), nil
}

// HasDistrictHead reports whether someone other than except heads the district.
func (dao *UserDAO) HasDistrictHead(ctx context.Context, district model.ID, except *model.ID) (bool, error) {
	logger := dao.Logger.With("query", "hasDistrictHead")

	builder := dao.Builder.
		Select("1").
		From("users").
		Where(squirrel.Eq{"district_id": district, "is_district_head": true}).
		Limit(1)
	if except != nil {
		builder = builder.Where(squirrel.NotEq{"id": *except})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	var one int
	if err := dao.QueryRowxContext(ctx, query, args...).Scan(&one); err != nil {
		if IsNoRows(err) {
			return false, nil
		}

		logger.Warn("failed query execute", "error", err)

		return false, err
	}

	return true, nil
}

type InsertUserDTO struct {
	Username     string
	PasswordHash string

	FirstName  string
	LastName   string
	MiddleName string
	Email      string

	DepartmentType *model.DepartmentType
	TelegramID     *int64

	DistrictID     *model.ID
	PositionID     *model.ID
	IsDistrictHead bool
	IsAdmin        bool
}

func (dao *UserDAO) Insert(ctx context.Context, dto InsertUserDTO) (model.ID, error) {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("users").
		Columns(
			"username", "password_hash",
			"first_name", "last_name", "middle_name", "email",
			"department_type", "telegram_id",
			"district_id", "position_id", "is_district_head", "is_admin",
		).
		Values(
			dto.Username, dto.PasswordHash,
			dto.FirstName, dto.LastName, dto.MiddleName, dto.Email,
			dto.DepartmentType, dto.TelegramID,
			dto.DistrictID, dto.PositionID, dto.IsDistrictHead, dto.IsAdmin,
		).
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
			return 0, userConflict(err)
		}

		return 0, err
	}

	logger.Debug("success query execute", "insertId", id)

	return id, nil
}

type UpdateUserDTO struct {
	Username   *string
	FirstName  *string
	LastName   *string
	MiddleName *string
	Email      *string

	DistrictID     *model.ID
	PositionID     *model.ID
	IsDistrictHead *bool

	TelegramID *int64
	Avatar     *string
}

func (dao *UserDAO) Update(ctx context.Context, id model.ID, dto UpdateUserDTO) error {
	logger := dao.Logger.With("query", "update")

	data := make(map[string]any, 11)
	data["updated_at"] = time.Now()
	if dto.Username != nil {
		data["username"] = *dto.Username
	}
	if dto.FirstName != nil {
		data["first_name"] = *dto.FirstName
	}
	if dto.LastName != nil {
		data["last_name"] = *dto.LastName
	}
	if dto.MiddleName != nil {
		data["middle_name"] = *dto.MiddleName
	}
	if dto.Email != nil {
		data["email"] = *dto.Email
	}
	if dto.DistrictID != nil {
		data["district_id"] = *dto.DistrictID
	}
	if dto.PositionID != nil {
		data["position_id"] = *dto.PositionID
	}
	if dto.IsDistrictHead != nil {
		data["is_district_head"] = *dto.IsDistrictHead
	}
	if dto.TelegramID != nil {
		data["telegram_id"] = *dto.TelegramID
	}
	if dto.Avatar != nil {
		data["avatar"] = *dto.Avatar
	}

	query, args, err := dao.Builder.
		Update("users").
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
			return userConflict(err)
		}

		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewError("user", model.ErrNotFound)
	}

	logger.Debug("success query execute", "updateId", id, "countUpdatedFields", len(data))

	return nil
}

func (dao *UserDAO) Delete(ctx context.Context, id model.ID) error {
	logger := dao.Logger.With("query", "delete")

	query, args, err := dao.Builder.
		Delete("users").
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
