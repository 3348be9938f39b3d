// Package directory manages districts, positions and members: registration,
// login, member administration and profile media.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotPermitted       = errors.New("not permitted")
)

const (
	MinPasswordLength = 8

	msgApparatUnavailable = "registration for apparat is temporarily unavailable"
	msgHeadTaken          = "this district already has a head"
)

// UsernameDenylist holds substrings a username may not contain, in any case.
var UsernameDenylist = []string{
	"huylan", "pidor", "pidoras", "gandon", "chmo", "suka", "blyat", "blyad",
	"idiot", "fuck", "fack", "sosat", "ebat", "huy", "hui", "pizda", "mudak",
	"dolboeb", "pedik", "shlyuha", "blya", "nahui", "zaebal", "zaebis",
}

type Users interface {
	Find(ctx context.Context, filter database.FindUserFilter, opts database.FindOptions) ([]model.User, error)
	Get(ctx context.Context, id model.ID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	HasDistrictHead(ctx context.Context, district model.ID, except *model.ID) (bool, error)
	Insert(ctx context.Context, dto database.InsertUserDTO) (model.ID, error)
	Update(ctx context.Context, id model.ID, dto database.UpdateUserDTO) error
	Delete(ctx context.Context, id model.ID) error
}

type Districts interface {
	Find(ctx context.Context) ([]model.District, error)
	Get(ctx context.Context, id model.ID) (model.District, error)
	Insert(ctx context.Context, dto database.InsertDistrictDTO) (model.ID, error)
	Update(ctx context.Context, id model.ID, dto database.UpdateDistrictDTO) error
}

type Positions interface {
	Find(ctx context.Context, filter database.FindPositionFilter) ([]model.Position, error)
	Get(ctx context.Context, id model.ID) (model.Position, error)
	Insert(ctx context.Context, dto database.InsertPositionDTO) (model.ID, error)
}

type Service struct {
	logger    *slog.Logger
	users     Users
	districts Districts
	positions Positions
	hashCost  int
}

func NewService(logger *slog.Logger, users Users, districts Districts, positions Positions) *Service {
	return &Service{
		logger:    logger.With("service", "directory"),
		users:     users,
		districts: districts,
		positions: positions,
		hashCost:  bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Username   string
	Password1  string
	Password2  string
	LastName   string
	FirstName  string
	MiddleName string
	Email      string

	DepartmentType string
	DistrictID     *model.ID
	PositionID     *model.ID
}

// Register validates the form and creates the member. A non-nil validator
// with errors means the form must be shown again; the error is reserved for
// failures the visitor cannot fix.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, *validator.Validator, error) {
	v := new(validator.Validator)

	username := strings.TrimSpace(in.Username)
	v.CheckField(validator.NotBlank(username), "username", "cannot be blank")
	v.CheckField(validator.MaxRunes(username, 150), "username", "must not be more than 150 characters")
	v.CheckField(validator.NotContainsAny(username, UsernameDenylist...), "username", "contains forbidden words")

	v.CheckField(validator.NotBlank(in.LastName), "last_name", "cannot be blank")
	v.CheckField(validator.MaxRunes(in.LastName, 150), "last_name", "must not be more than 150 characters")
	v.CheckField(validator.NotBlank(in.FirstName), "first_name", "cannot be blank")
	v.CheckField(validator.MaxRunes(in.FirstName, 150), "first_name", "must not be more than 150 characters")
	v.CheckField(validator.MaxRunes(in.MiddleName, 150), "middle_name", "must not be more than 150 characters")

	email := strings.TrimSpace(in.Email)
	v.CheckField(validator.NotBlank(email), "email", "cannot be blank")
	v.CheckField(validator.IsEmail(email), "email", "must be a valid email address")

	v.CheckField(validator.NotBlank(in.Password1), "password1", "cannot be blank")
	v.CheckField(validator.MinRunes(in.Password1, MinPasswordLength), "password1", "must be at least 8 characters")
	v.CheckField(in.Password1 == in.Password2, "password2", "passwords do not match")

	department := model.DepartmentType(in.DepartmentType)
	v.CheckField(
		validator.PermittedValue(department, model.DepartmentApparat, model.DepartmentDistrict),
		"department_type", "select a department type",
	)

	var position *model.Position
	switch department {
	case model.DepartmentApparat:
		v.AddError(msgApparatUnavailable)
	case model.DepartmentDistrict:
		v.CheckField(in.DistrictID != nil, "district", "select a district")
		v.CheckField(in.PositionID != nil, "position", "select a position")

		if in.DistrictID != nil {
			if _, err := s.districts.Get(ctx, *in.DistrictID); err != nil {
				if !errors.Is(err, model.ErrNotFound) {
					return model.User{}, nil, err
				}
				v.AddFieldError("district", "unknown district")
			}
		}
		if in.PositionID != nil {
			p, err := s.positions.Get(ctx, *in.PositionID)
			switch {
			case errors.Is(err, model.ErrNotFound):
				v.AddFieldError("position", "unknown position")
			case err != nil:
				return model.User{}, nil, err
			default:
				position = &p
			}
		}

		if position != nil && in.DistrictID != nil && isHeadPosition(*position) {
			taken, err := s.users.HasDistrictHead(ctx, *in.DistrictID, nil)
			if err != nil {
				return model.User{}, nil, err
			}
			v.CheckField(!taken, "position", msgHeadTaken)
		}
	}

	if v.HasErrors() {
		return model.User{}, v, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), s.hashCost)
	if err != nil {
		return model.User{}, nil, err
	}

	dto := database.InsertUserDTO{
		Username:       username,
		PasswordHash:   string(hash),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		MiddleName:     strings.TrimSpace(in.MiddleName),
		Email:          email,
		DepartmentType: &department,
		DistrictID:     in.DistrictID,
		PositionID:     in.PositionID,
		IsDistrictHead: position != nil && isHeadPosition(*position),
	}

	id, err := s.users.Insert(ctx, dto)
	switch {
	case errors.Is(err, model.ErrDistrictHeadTaken):
		v.AddFieldError("position", msgHeadTaken)
		return model.User{}, v, nil
	case errors.Is(err, model.ErrExists):
		v.AddFieldError("username", "a user with that username already exists")
		return model.User{}, v, nil
	case err != nil:
		return model.User{}, nil, err
	}

	user, err := s.users.Get(ctx, id)
	if err != nil {
		return model.User{}, nil, err
	}

	s.logger.Info("member registered", "userId", id, "username", username)

	return user, v, nil
}

func isHeadPosition(p model.Position) bool {
	set, _ := access.Parse(p.Capabilities)
	return set.Has(access.DistrictHead)
}

// Authenticate checks a username and password pair. Usernames compare
// case-insensitively.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// PositionsFor lists positions open for registration in the district. Head
// positions are dropped once the district has a head.
func (s *Service) PositionsFor(ctx context.Context, district *model.ID) ([]model.Position, error) {
	var filter database.FindPositionFilter

	if district != nil {
		taken, err := s.users.HasDistrictHead(ctx, *district, nil)
		if err != nil {
			return nil, err
		}
		if taken {
			head := string(access.DistrictHead)
			filter.WithoutCapability = &head
		}
	}

	return s.positions.Find(ctx, filter)
}

func (s *Service) Member(ctx context.Context, id model.ID) (model.User, error) {
	return s.users.Get(ctx, id)
}

// ListMembers returns everyone except the actor, by last name. Leaders and
// deputies only.
func (s *Service) ListMembers(ctx context.Context, actor model.User) ([]model.User, error) {
	if !access.SubjectOf(actor).CanViewMembers() {
		return nil, ErrNotPermitted
	}

	return s.users.Find(ctx, database.FindUserFilter{ExcludeID: &actor.ID}, database.FindOptions{})
}

type UpdateMemberInput struct {
	Username   *string
	LastName   *string
	FirstName  *string
	MiddleName *string
	Email      *string
	DistrictID *model.ID
	PositionID *model.ID
}

// UpdateMember edits a member. A leader of the target's district gets the
// full form; members editing themselves may change only their username.
func (s *Service) UpdateMember(
	ctx context.Context, actor model.User, targetID model.ID, in UpdateMemberInput,
) (model.User, *validator.Validator, error) {
	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		return model.User{}, nil, err
	}

	full := access.SubjectOf(actor).CanManageMember(target)
	if !full && actor.ID != target.ID {
		return model.User{}, nil, ErrNotPermitted
	}

	v := new(validator.Validator)
	var dto database.UpdateUserDTO

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		v.CheckField(validator.NotBlank(username), "username", "cannot be blank")
		v.CheckField(validator.MaxRunes(username, 150), "username", "must not be more than 150 characters")
		v.CheckField(validator.NotContainsAny(username, UsernameDenylist...), "username", "contains forbidden words")
		dto.Username = &username
	}

	if full {
		checkName := func(field string, value *string, required bool) *string {
			if value == nil {
				return nil
			}
			trimmed := strings.TrimSpace(*value)
			if required {
				v.CheckField(validator.NotBlank(trimmed), field, "cannot be blank")
			}
			v.CheckField(validator.MaxRunes(trimmed, 150), field, "must not be more than 150 characters")
			return &trimmed
		}
		dto.LastName = checkName("last_name", in.LastName, true)
		dto.FirstName = checkName("first_name", in.FirstName, true)
		dto.MiddleName = checkName("middle_name", in.MiddleName, false)

		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			v.CheckField(validator.IsEmail(email), "email", "must be a valid email address")
			dto.Email = &email
		}

		if err := s.applyPlacement(ctx, v, target, in, &dto); err != nil {
			return model.User{}, nil, err
		}
	}

	if v.HasErrors() {
		return model.User{}, v, nil
	}

	err = s.users.Update(ctx, target.ID, dto)
	switch {
	case errors.Is(err, model.ErrDistrictHeadTaken):
		v.AddFieldError("position", msgHeadTaken)
		return model.User{}, v, nil
	case errors.Is(err, model.ErrExists):
		v.AddFieldError("username", "a user with that username already exists")
		return model.User{}, v, nil
	case err != nil:
		return model.User{}, nil, err
	}

	updated, err := s.users.Get(ctx, target.ID)
	if err != nil {
		return model.User{}, nil, err
	}

	s.logger.Info("member updated", "userId", target.ID, "actorId", actor.ID, "fullForm", full)

	return updated, v, nil
}

// applyPlacement validates district and position changes and keeps the
// district head flag in step with the position.
func (s *Service) applyPlacement(
	ctx context.Context, v *validator.Validator, target model.User, in UpdateMemberInput, dto *database.UpdateUserDTO,
) error {
	district := target.DistrictID
	if in.DistrictID != nil {
		if _, err := s.districts.Get(ctx, *in.DistrictID); err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			v.AddFieldError("district", "unknown district")
			return nil
		}
		district = in.DistrictID
		dto.DistrictID = in.DistrictID
	}

	position := target.Position
	if in.PositionID != nil {
		p, err := s.positions.Get(ctx, *in.PositionID)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			v.AddFieldError("position", "unknown position")
			return nil
		}
		position = &p
		dto.PositionID = in.PositionID
	}

	if in.DistrictID == nil && in.PositionID == nil {
		return nil
	}

	head := position != nil && isHeadPosition(*position)
	dto.IsDistrictHead = &head

	if head && district != nil {
		taken, err := s.users.HasDistrictHead(ctx, *district, &target.ID)
		if err != nil {
			return err
		}
		v.CheckField(!taken, "position", msgHeadTaken)
	}

	return nil
}

// DeleteMember removes a member of the actor's own district. Leaders only.
func (s *Service) DeleteMember(ctx context.Context, actor model.User, targetID model.ID) error {
	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		return err
	}

	if !access.SubjectOf(actor).CanManageMember(target) {
		return ErrNotPermitted
	}

	if err := s.users.Delete(ctx, target.ID); err != nil {
		return err
	}

	s.logger.Info("member deleted", "userId", target.ID, "actorId", actor.ID)

	return nil
}

func (s *Service) SetAvatar(ctx context.Context, userID model.ID, path string) error {
	return s.users.Update(ctx, userID, database.UpdateUserDTO{Avatar: &path})
}

// SetTeamPhoto stores the photo path on the actor's district.
func (s *Service) SetTeamPhoto(ctx context.Context, actor model.User, path string) error {
	if !access.SubjectOf(actor).CanUploadTeamPhoto() {
		return ErrNotPermitted
	}

	return s.districts.Update(ctx, *actor.DistrictID, database.UpdateDistrictDTO{TeamPhoto: &path})
}
