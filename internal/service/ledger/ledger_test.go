package ledger

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImportances struct{ items []model.EventImportance }

func (f *fakeImportances) Find(context.Context) ([]model.EventImportance, error) { return f.items, nil }

func (f *fakeImportances) Insert(_ context.Context, level string, weight int) (model.ID, error) {
	for _, i := range f.items {
		if i.Level == level || i.Weight == weight {
			return 0, model.NewError("importance", model.ErrExists)
		}
	}
	id := model.ID(len(f.items) + 1)
	f.items = append(f.items, model.EventImportance{ID: id, Level: level, Weight: weight})
	return id, nil
}

type fakeEvents struct{ items map[model.ID]model.Event }

func (f *fakeEvents) Find(context.Context, database.FindOptions) ([]model.Event, error) {
	out := []model.Event{}
	for _, e := range f.items {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) Get(_ context.Context, id model.ID) (model.Event, error) {
	e, ok := f.items[id]
	if !ok {
		return model.Event{}, model.NewError("event", model.ErrNotFound)
	}
	return e, nil
}

func (f *fakeEvents) Insert(_ context.Context, dto database.InsertEventDTO) (model.ID, error) {
	id := model.ID(len(f.items) + 1)
	f.items[id] = model.Event{ID: id, Name: dto.Name, Date: dto.Date, Type: dto.Type, ImportanceID: dto.ImportanceID}
	return id, nil
}

func (f *fakeEvents) Delete(_ context.Context, id model.ID) error {
	if _, ok := f.items[id]; !ok {
		return model.NewError("event", model.ErrNotFound)
	}
	delete(f.items, id)
	return nil
}

type pair struct{ user, event model.ID }

type fakeParticipations struct {
	rows    map[model.ID]model.Participation
	pairs   map[pair]bool
	records []database.ParticipationRecord
}

func (f *fakeParticipations) Insert(_ context.Context, dto database.InsertParticipationDTO) (model.ID, error) {
	key := pair{dto.UserID, dto.EventID}
	if f.pairs[key] {
		return 0, model.NewError("participation", model.ErrExists)
	}
	f.pairs[key] = true
	id := model.ID(len(f.rows) + 1)
	f.rows[id] = model.Participation{ID: id, UserID: dto.UserID, EventID: dto.EventID, Role: dto.Role, Status: dto.Status}
	return id, nil
}

func (f *fakeParticipations) Delete(_ context.Context, id model.ID) error {
	p, ok := f.rows[id]
	if !ok {
		return model.NewError("participation", model.ErrNotFound)
	}
	delete(f.pairs, pair{p.UserID, p.EventID})
	delete(f.rows, id)
	return nil
}

func (f *fakeParticipations) FindByUser(context.Context, model.ID) ([]database.ParticipationRecord, error) {
	return f.records, nil
}

func newService() (*Service, *fakeParticipations) {
	parts := &fakeParticipations{rows: map[model.ID]model.Participation{}, pairs: map[pair]bool{}}
	svc := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeImportances{},
		&fakeEvents{items: map[model.ID]model.Event{}},
		parts,
	)
	return svc, parts
}

func TestRecordParticipationOncePerEvent(t *testing.T) {
	svc, parts := newService()
	ctx := context.Background()

	p, v, err := svc.RecordParticipation(ctx, ParticipationInput{UserID: 1, EventID: 2})
	require.NoError(t, err)
	require.False(t, v.HasErrors())
	assert.Equal(t, model.RoleListener, p.Role)
	assert.Equal(t, model.DefaultParticipationStatus, p.Status)

	_, _, err = svc.RecordParticipation(ctx, ParticipationInput{UserID: 1, EventID: 2, Role: "delegate"})
	assert.ErrorIs(t, err, model.ErrExists)
	assert.Len(t, parts.rows, 1)

	_, v, err = svc.RecordParticipation(ctx, ParticipationInput{UserID: 1, EventID: 3, Role: "spectator"})
	require.NoError(t, err)
	assert.Contains(t, v.FieldErrors, "role")

	require.NoError(t, svc.DeleteParticipation(ctx, p.ID))
	_, _, err = svc.RecordParticipation(ctx, ParticipationInput{UserID: 1, EventID: 2})
	assert.NoError(t, err)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, v, err := svc.CreateEvent(ctx, EventInput{Name: "Форум", Date: "09.05.2025"})
	require.NoError(t, err)
	assert.Contains(t, v.FieldErrors, "date")

	_, v, err = svc.CreateEvent(ctx, EventInput{Name: "Форум", Date: "2025-05-09", Type: "secret"})
	require.NoError(t, err)
	assert.Contains(t, v.FieldErrors, "type")

	e, v, err := svc.CreateEvent(ctx, EventInput{Name: "Форум", Date: "2025-05-09"})
	require.NoError(t, err)
	assert.False(t, v.HasErrors())
	assert.Equal(t, model.EventOfficial, e.Type)
}

func TestCreateImportanceUnique(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, v, err := svc.CreateImportance(ctx, "Федеральный", 10)
	require.NoError(t, err)
	assert.False(t, v.HasErrors())

	_, v, err = svc.CreateImportance(ctx, "Региональный", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Errors)
}

func TestReportScore(t *testing.T) {
	svc, parts := newService()
	date, _ := model.ParseDate("2025-05-09")

	parts.records = []database.ParticipationRecord{
		{
			Participation:    model.Participation{ID: 1, EventID: 1, Role: model.RoleDelegate},
			EventName:        "Форум",
			EventDate:        date,
			ImportanceLevel:  sql.NullString{String: "Федеральный", Valid: true},
			ImportanceWeight: sql.NullInt64{Int64: 10, Valid: true},
		},
		{
			Participation:    model.Participation{ID: 2, EventID: 2, Role: model.RoleVolunteer},
			EventName:        "Субботник",
			EventDate:        date,
			ImportanceWeight: sql.NullInt64{Int64: 3, Valid: true},
		},
		{
			Participation: model.Participation{ID: 3, EventID: 3, Role: model.RoleListener},
			EventName:     "Лекция",
			EventDate:     date,
		},
	}

	report, err := svc.Report(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 13, report.Score)
	assert.Equal(t, "Федеральный", report.Lines[0].Importance)
	assert.Zero(t, report.Lines[2].Weight)
}
