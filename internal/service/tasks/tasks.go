// Package tasks implements the task registry: creation from the bot,
// per-viewer listing, sign-up toggling, and district task edits.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/validator"
)

var (
	ErrMissingIdentity  = errors.New("telegram id is missing")
	ErrUnknownIdentity  = errors.New("user is not linked to telegram")
	ErrNoPosition       = errors.New("user has no position")
	ErrNotPermitted     = errors.New("not permitted")
	ErrInvalidType      = errors.New("invalid task type")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidDeadline  = errors.New("invalid deadline date or time")
	ErrInvalidEventDate = errors.New("invalid event date or time")
	ErrNoDistrict       = errors.New("user has no district for a district task")
	ErrBlankTitle       = errors.New("title cannot be blank")
)

// IsValidationError reports whether err is a malformed-input rejection.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingIdentity, ErrInvalidType, ErrInvalidStatus, ErrInvalidDeadline,
		ErrInvalidEventDate, ErrNoDistrict, ErrBlankTitle,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsForbidden reports whether err is an authorization rejection.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrUnknownIdentity) ||
		errors.Is(err, ErrNoPosition) ||
		errors.Is(err, ErrNotPermitted)
}

type Repository interface {
	Find(ctx context.Context, filter database.FindTaskFilter, opts database.FindOptions) ([]model.Task, error)
	Get(ctx context.Context, id model.ID) (model.Task, error)
	Insert(ctx context.Context, dto database.InsertTaskDTO) (model.ID, error)
	Update(ctx context.Context, id model.ID, dto database.UpdateTaskDTO) error
	Delete(ctx context.Context, id model.ID) error
	ToggleSignup(ctx context.Context, task, user model.ID) (bool, error)
	SignedUpTasks(ctx context.Context, user model.ID, tasks []model.ID) (map[model.ID]bool, error)
	DistrictSignups(ctx context.Context, district model.ID, tasks []model.ID) (map[model.ID][]model.User, error)
}

type Members interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
}

type Service struct {
	logger  *slog.Logger
	tasks   Repository
	members Members
	now     func() time.Time
}

func NewService(logger *slog.Logger, tasks Repository, members Members) *Service {
	return &Service{
		logger:  logger.With("service", "tasks"),
		tasks:   tasks,
		members: members,
		now:     time.Now,
	}
}

type CreateInput struct {
	TelegramID   *int64
	Title        string
	Description  string
	Type         string
	Deadline     string
	DeadlineTime string
	EventDate    string
	EventTime    string
}

// CreateFromBot creates a task on behalf of the member linked to the
// telegram id. District tasks take the creator's district.
func (s *Service) CreateFromBot(ctx context.Context, in CreateInput) (model.Task, error) {
	if in.TelegramID == nil || *in.TelegramID == 0 {
		return model.Task{}, ErrMissingIdentity
	}

	creator, err := s.members.GetByTelegramID(ctx, *in.TelegramID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("task from unknown telegram id", "telegramId", *in.TelegramID)
			return model.Task{}, ErrUnknownIdentity
		}
		return model.Task{}, err
	}

	if creator.Position == nil {
		return model.Task{}, ErrNoPosition
	}
	if !access.SubjectOf(creator).CanCreateTask() {
		s.logger.Warn("task creation denied", "username", creator.Username, "position", creator.Position.Title)
		return model.Task{}, ErrNotPermitted
	}

	typ := model.TaskType(in.Type)
	if !validator.PermittedValue(typ, model.TaskTypes...) {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}

	sched, err := parseSchedule(in.Deadline, in.DeadlineTime, in.EventDate, in.EventTime)
	if err != nil {
		return model.Task{}, err
	}

	var district *model.ID
	if typ == model.TaskDistrict {
		if creator.DistrictID == nil {
			return model.Task{}, ErrNoDistrict
		}
		district = creator.DistrictID
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ErrBlankTitle
	}

	username := creator.Username
	creatorID := int64(creator.ID)
	dto := database.InsertTaskDTO{
		Title:             title,
		Description:       strings.TrimSpace(in.Description),
		Deadline:          sched.deadline,
		DeadlineTime:      sched.deadlineTime,
		EventDate:         sched.eventDate,
		EventTime:         sched.eventTime,
		Type:              typ,
		Status:            model.TaskOpen,
		DistrictID:        district,
		CreatedByUsername: &username,
		CreatedByUserID:   &creatorID,
	}

	id, err := s.tasks.Insert(ctx, dto)
	if err != nil {
		return model.Task{}, err
	}

	logger := s.logger.With("taskId", id, "username", creator.Username, "telegramId", *in.TelegramID)
	if district != nil {
		logger = logger.With("districtId", *district)
	}
	logger.Info("task created from bot", "title", title)

	return model.Task{
		ID:                id,
		CreatedAt:         s.now(),
		Title:             dto.Title,
		Description:       dto.Description,
		Deadline:          dto.Deadline,
		DeadlineTime:      dto.DeadlineTime,
		EventDate:         dto.EventDate,
		EventTime:         dto.EventTime,
		Type:              dto.Type,
		Status:            dto.Status,
		DistrictID:        dto.DistrictID,
		CreatedByUsername: dto.CreatedByUsername,
		CreatedByUserID:   dto.CreatedByUserID,
	}, nil
}

type schedule struct {
	deadline     model.Date
	deadlineTime *model.TimeOfDay
	eventDate    *model.Date
	eventTime    *model.TimeOfDay
}

// parseSchedule parses deadline and event fields. The event time is only
// read when an event date is given.
func parseSchedule(deadline, deadlineTime, eventDate, eventTime string) (schedule, error) {
	var (
		sched schedule
		err   error
	)

	sched.deadline, err = model.ParseDate(strings.TrimSpace(deadline))
	if err != nil {
		return schedule{}, ErrInvalidDeadline
	}
	if v := strings.TrimSpace(deadlineTime); v != "" {
		t, err := model.ParseTimeOfDay(v)
		if err != nil {
			return schedule{}, ErrInvalidDeadline
		}
		sched.deadlineTime = &t
	}

	if v := strings.TrimSpace(eventDate); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return schedule{}, ErrInvalidEventDate
		}
		sched.eventDate = &d

		if v := strings.TrimSpace(eventTime); v != "" {
			t, err := model.ParseTimeOfDay(v)
			if err != nil {
				return schedule{}, ErrInvalidEventDate
			}
			sched.eventTime = &t
		}
	}

	return sched, nil
}

type TaskView struct {
	model.Task

	IsActive  bool `json:"isActive"`
	IsOverdue bool `json:"isOverdue"`
	SignedUp  bool `json:"signedUp"`
	CanManage bool `json:"canManage"`

	// Filled for leaders and deputies with a district only.
	DistrictSignups     []model.User `json:"districtSignups"`
	DistrictSignupCount int          `json:"districtSignupCount"`
}

// ListForViewer returns the tasks the viewer may see, newest deadline first.
func (s *Service) ListForViewer(ctx context.Context, viewer model.User) ([]TaskView, error) {
	list, err := s.tasks.Find(ctx, database.FindTaskFilter{VisibleTo: viewer.DistrictID}, database.FindOptions{})
	if err != nil {
		return nil, err
	}

	ids := make([]model.ID, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}

	signed := map[model.ID]bool{}
	if len(ids) > 0 {
		if signed, err = s.tasks.SignedUpTasks(ctx, viewer.ID, ids); err != nil {
			return nil, err
		}
	}

	subject := access.SubjectOf(viewer)
	annotate := subject.CanViewMembers() && viewer.DistrictID != nil

	signups := map[model.ID][]model.User{}
	if annotate && len(ids) > 0 {
		if signups, err = s.tasks.DistrictSignups(ctx, *viewer.DistrictID, ids); err != nil {
			return nil, err
		}
	}

	now := s.now()
	views := make([]TaskView, 0, len(list))
	for _, t := range list {
		view := TaskView{
			Task:            t,
			IsActive:        t.IsActive(now),
			IsOverdue:       t.IsOverdue(now),
			SignedUp:        signed[t.ID],
			CanManage:       subject.CanManageTask(t),
			DistrictSignups: []model.User{},
		}
		if annotate {
			if users := signups[t.ID]; users != nil {
				view.DistrictSignups = users
			}
			view.DistrictSignupCount = len(view.DistrictSignups)
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *Service) Get(ctx context.Context, id model.ID) (model.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ToggleSignup flips the user's membership in the task's sign-up set and
// reports the membership afterwards.
func (s *Service) ToggleSignup(ctx context.Context, taskID, userID model.ID) (bool, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return false, err
	}

	signedUp, err := s.tasks.ToggleSignup(ctx, taskID, userID)
	if err != nil {
		return false, err
	}

	s.logger.Debug("signup toggled", "taskId", taskID, "userId", userID, "signedUp", signedUp)

	return signedUp, nil
}

type UpdateInput struct {
	Title        string
	Description  string
	Deadline     string
	DeadlineTime string
	EventDate    string
	EventTime    string
	// Status keeps the current one when blank.
	Status string
}

// Update replaces the editable fields of a district task. The district stays
// the actor's.
func (s *Service) Update(ctx context.Context, actor model.User, taskID model.ID, in UpdateInput) (model.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}

	if !access.SubjectOf(actor).CanManageTask(task) {
		return model.Task{}, ErrNotPermitted
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ErrBlankTitle
	}

	status := task.Status
	if v := strings.TrimSpace(in.Status); v != "" {
		status = model.TaskStatus(v)
		if !validator.PermittedValue(status, model.TaskStatuses...) {
			return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
		}
	}

	sched, err := parseSchedule(in.Deadline, in.DeadlineTime, in.EventDate, in.EventTime)
	if err != nil {
		return model.Task{}, err
	}

	dto := database.UpdateTaskDTO{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Deadline:     sched.deadline,
		DeadlineTime: sched.deadlineTime,
		EventDate:    sched.eventDate,
		EventTime:    sched.eventTime,
		Status:       status,
		DistrictID:   actor.DistrictID,
	}
	if err := s.tasks.Update(ctx, taskID, dto); err != nil {
		return model.Task{}, err
	}

	task.Title = dto.Title
	task.Description = dto.Description
	task.Deadline = dto.Deadline
	task.DeadlineTime = dto.DeadlineTime
	task.EventDate = dto.EventDate
	task.EventTime = dto.EventTime
	task.Status = dto.Status
	task.DistrictID = dto.DistrictID

	s.logger.Info("task updated", "taskId", taskID, "userId", actor.ID)

	return task, nil
}

func (s *Service) Delete(ctx context.Context, actor model.User, taskID model.ID) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if !access.SubjectOf(actor).CanManageTask(task) {
		return ErrNotPermitted
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}

	s.logger.Info("task deleted", "taskId", taskID, "userId", actor.ID)

	return nil
}
