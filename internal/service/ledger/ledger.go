// Package ledger records event participation and scores it by event
// importance.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/validator"
)

type Importances interface {
	Find(ctx context.Context) ([]model.EventImportance, error)
	Insert(ctx context.Context, level string, weight int) (model.ID, error)
}

type Events interface {
	Find(ctx context.Context, opts database.FindOptions) ([]model.Event, error)
	Get(ctx context.Context, id model.ID) (model.Event, error)
	Insert(ctx context.Context, dto database.InsertEventDTO) (model.ID, error)
	Delete(ctx context.Context, id model.ID) error
}

type Participations interface {
	Insert(ctx context.Context, dto database.InsertParticipationDTO) (model.ID, error)
	Delete(ctx context.Context, id model.ID) error
	FindByUser(ctx context.Context, user model.ID) ([]database.ParticipationRecord, error)
}

type Service struct {
	logger         *slog.Logger
	importances    Importances
	events         Events
	participations Participations
}

func NewService(logger *slog.Logger, importances Importances, events Events, participations Participations) *Service {
	return &Service{
		logger:         logger.With("service", "ledger"),
		importances:    importances,
		events:         events,
		participations: participations,
	}
}

// ListImportances returns importance levels, heaviest first.
func (s *Service) ListImportances(ctx context.Context) ([]model.EventImportance, error) {
	return s.importances.Find(ctx)
}

func (s *Service) CreateImportance(ctx context.Context, level string, weight int) (model.EventImportance, *validator.Validator, error) {
	v := new(validator.Validator)

	level = strings.TrimSpace(level)
	v.CheckField(validator.NotBlank(level), "level", "cannot be blank")
	v.CheckField(validator.MaxRunes(level, 50), "level", "must not be more than 50 characters")
	if v.HasErrors() {
		return model.EventImportance{}, v, nil
	}

	id, err := s.importances.Insert(ctx, level, weight)
	if err != nil {
		if errors.Is(err, model.ErrExists) {
			v.AddError("importance with this level or weight already exists")
			return model.EventImportance{}, v, nil
		}
		return model.EventImportance{}, nil, err
	}

	return model.EventImportance{ID: id, Level: level, Weight: weight}, v, nil
}

// ListEvents returns events, latest first.
func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.Find(ctx, database.FindOptions{})
}

type EventInput struct {
	Name              string
	Date              string
	Type              string
	ImportanceID      *model.ID
	ParticipantsCount int
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (model.Event, *validator.Validator, error) {
	v := new(validator.Validator)

	name := strings.TrimSpace(in.Name)
	v.CheckField(validator.NotBlank(name), "name", "cannot be blank")
	v.CheckField(validator.MaxRunes(name, 255), "name", "must not be more than 255 characters")

	date, err := model.ParseDate(strings.TrimSpace(in.Date))
	v.CheckField(err == nil, "date", "must be a date in YYYY-MM-DD format")

	typ := model.EventOfficial
	if in.Type != "" {
		typ = model.EventType(in.Type)
	}
	v.CheckField(validator.PermittedValue(typ, model.EventOfficial, model.EventOrganized), "type", "must be official or organized")
	v.CheckField(in.ParticipantsCount >= 0, "participants_count", "must not be negative")

	if v.HasErrors() {
		return model.Event{}, v, nil
	}

	dto := database.InsertEventDTO{
		Name:              name,
		Date:              date,
		Type:              typ,
		ImportanceID:      in.ImportanceID,
		ParticipantsCount: in.ParticipantsCount,
	}

	id, err := s.events.Insert(ctx, dto)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			v.AddFieldError("importance_id", "unknown importance")
			return model.Event{}, v, nil
		}
		return model.Event{}, nil, err
	}

	s.logger.Info("event created", "eventId", id, "name", name)

	return model.Event{
		ID:                id,
		Name:              dto.Name,
		Date:              dto.Date,
		Type:              dto.Type,
		ImportanceID:      dto.ImportanceID,
		ParticipantsCount: dto.ParticipantsCount,
	}, v, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id model.ID) error {
	return s.events.Delete(ctx, id)
}

type ParticipationInput struct {
	UserID  model.ID
	EventID model.ID
	Role    string
	Status  string
}

// RecordParticipation adds a participation row. A second row for the same
// user and event fails with model.ErrExists.
func (s *Service) RecordParticipation(ctx context.Context, in ParticipationInput) (model.Participation, *validator.Validator, error) {
	v := new(validator.Validator)

	role := model.RoleListener
	if in.Role != "" {
		role = model.ParticipationRole(in.Role)
	}
	v.CheckField(validator.PermittedValue(role, model.ParticipationRoles...), "role", "unknown role")

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = model.DefaultParticipationStatus
	}
	v.CheckField(validator.MaxRunes(status, 50), "status", "must not be more than 50 characters")

	if v.HasErrors() {
		return model.Participation{}, v, nil
	}

	id, err := s.participations.Insert(ctx, database.InsertParticipationDTO{
		UserID:  in.UserID,
		EventID: in.EventID,
		Role:    role,
		Status:  status,
	})
	if err != nil {
		return model.Participation{}, nil, err
	}

	s.logger.Info("participation recorded", "participationId", id, "userId", in.UserID, "eventId", in.EventID)

	return model.Participation{ID: id, UserID: in.UserID, EventID: in.EventID, Role: role, Status: status}, v, nil
}

func (s *Service) DeleteParticipation(ctx context.Context, id model.ID) error {
	return s.participations.Delete(ctx, id)
}

func (s *Service) ParticipationsForUser(ctx context.Context, user model.ID) ([]database.ParticipationRecord, error) {
	return s.participations.FindByUser(ctx, user)
}

type ReportLine struct {
	ParticipationID model.ID                `json:"participationId"`
	EventID         model.ID                `json:"eventId"`
	EventName       string                  `json:"eventName"`
	EventDate       model.Date              `json:"eventDate"`
	EventType       model.EventType         `json:"eventType"`
	Role            model.ParticipationRole `json:"role"`
	Status          string                  `json:"status"`
	Importance      string                  `json:"importance,omitempty"`
	Weight          int                     `json:"weight"`
}

type Report struct {
	UserID model.ID     `json:"userId"`
	Lines  []ReportLine `json:"lines"`
	Events int          `json:"events"`
	Score  int          `json:"score"`
}

// Report sums importance weights over the user's participations. Events
// without an importance count with weight zero.
func (s *Service) Report(ctx context.Context, user model.ID) (Report, error) {
	records, err := s.ParticipationsForUser(ctx, user)
	if err != nil {
		return Report{}, err
	}

	report := Report{UserID: user, Lines: make([]ReportLine, 0, len(records))}
	for _, rec := range records {
		line := ReportLine{
			ParticipationID: rec.ID,
			EventID:         rec.EventID,
			EventName:       rec.EventName,
			EventDate:       rec.EventDate,
			EventType:       rec.EventType,
			Role:            rec.Role,
			Status:          rec.Status,
			Importance:      rec.ImportanceLevel.String,
			Weight:          int(rec.ImportanceWeight.Int64),
		}
		report.Lines = append(report.Lines, line)
		report.Score += line.Weight
	}
	report.Events = len(report.Lines)

	return report, nil
}
