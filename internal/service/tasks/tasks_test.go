package tasks

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nextID  model.ID
	tasks   map[model.ID]model.Task
	signups map[model.ID]map[model.ID]bool
	users   map[model.ID]model.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:   map[model.ID]model.Task{},
		signups: map[model.ID]map[model.ID]bool{},
		users:   map[model.ID]model.User{},
	}
}

func (f *fakeRepo) Find(_ context.Context, filter database.FindTaskFilter, _ database.FindOptions) ([]model.Task, error) {
	out := []model.Task{}
	for _, t := range f.tasks {
		if filter.VisibleTo != nil &&
			!(t.DistrictID == nil || *t.DistrictID == *filter.VisibleTo || t.Type != model.TaskDistrict) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline.Time) {
			return out[i].Deadline.After(out[j].Deadline.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id model.ID) (model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return model.Task{}, model.NewError("task", model.ErrNotFound)
	}
	return t, nil
}

func (f *fakeRepo) Insert(_ context.Context, dto database.InsertTaskDTO) (model.ID, error) {
	f.nextID++
	f.tasks[f.nextID] = model.Task{
		ID:                f.nextID,
		CreatedAt:         time.Now().Add(time.Duration(f.nextID) * time.Second),
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
	}
	return f.nextID, nil
}

func (f *fakeRepo) Update(_ context.Context, id model.ID, dto database.UpdateTaskDTO) error {
	t, ok := f.tasks[id]
	if !ok {
		return model.NewError("task", model.ErrNotFound)
	}
	t.Title, t.Description, t.Status, t.DistrictID = dto.Title, dto.Description, dto.Status, dto.DistrictID
	t.Deadline, t.DeadlineTime, t.EventDate, t.EventTime = dto.Deadline, dto.DeadlineTime, dto.EventDate, dto.EventTime
	f.tasks[id] = t
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id model.ID) error {
	delete(f.tasks, id)
	delete(f.signups, id)
	return nil
}

func (f *fakeRepo) ToggleSignup(_ context.Context, task, user model.ID) (bool, error) {
	if f.signups[task] == nil {
		f.signups[task] = map[model.ID]bool{}
	}
	if f.signups[task][user] {
		delete(f.signups[task], user)
		return false, nil
	}
	f.signups[task][user] = true
	return true, nil
}

func (f *fakeRepo) SignedUpTasks(_ context.Context, user model.ID, tasks []model.ID) (map[model.ID]bool, error) {
	out := map[model.ID]bool{}
	for _, id := range tasks {
		if f.signups[id][user] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeRepo) DistrictSignups(_ context.Context, district model.ID, tasks []model.ID) (map[model.ID][]model.User, error) {
	out := map[model.ID][]model.User{}
	for _, id := range tasks {
		for uid := range f.signups[id] {
			if u := f.users[uid]; model.SameDistrict(u.DistrictID, &district) {
				out[id] = append(out[id], u)
			}
		}
	}
	return out, nil
}

type fakeMembers map[int64]model.User

func (f fakeMembers) GetByTelegramID(_ context.Context, telegramID int64) (model.User, error) {
	u, ok := f[telegramID]
	if !ok {
		return model.User{}, model.NewError("user", model.ErrNotFound)
	}
	return u, nil
}

func idPtr(id model.ID) *model.ID { return &id }

func tgPtr(id int64) *int64 { return &id }

var (
	leaderPosition = &model.Position{ID: 1, Title: "Руководитель районного отделения", Capabilities: []string{"leader", "district_head"}}
	deputyPosition = &model.Position{ID: 2, Title: "Заместитель", Capabilities: []string{"deputy"}}
	memberPosition = &model.Position{ID: 3, Title: "Активист"}
)

func newService(repo *fakeRepo, members fakeMembers) *Service {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, members)
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateFromBot(t *testing.T) {
	leader := model.User{ID: 10, Username: "leader", TelegramID: tgPtr(100), DistrictID: idPtr(5), Position: leaderPosition}
	homeless := model.User{ID: 11, Username: "homeless", TelegramID: tgPtr(101), Position: deputyPosition}
	member := model.User{ID: 12, Username: "member", TelegramID: tgPtr(102), DistrictID: idPtr(5), Position: memberPosition}
	noPosition := model.User{ID: 13, Username: "nobody", TelegramID: tgPtr(103), DistrictID: idPtr(5)}

	members := fakeMembers{100: leader, 101: homeless, 102: member, 103: noPosition}

	valid := func(tid int64, typ string) CreateInput {
		return CreateInput{TelegramID: tgPtr(tid), Title: "  Субботник  ", Description: " desc ", Type: typ, Deadline: "2025-06-20"}
	}

	tests := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"missing identity", CreateInput{Type: "district", Deadline: "2025-06-20"}, ErrMissingIdentity},
		{"unknown identity", valid(999, "district"), ErrUnknownIdentity},
		{"no position", valid(103, "district"), ErrNoPosition},
		{"plain member", valid(102, "district"), ErrNotPermitted},
		{"unknown type", valid(100, "party"), ErrInvalidType},
		{"bad deadline", CreateInput{TelegramID: tgPtr(100), Title: "t", Type: "online", Deadline: "20.06.2025"}, ErrInvalidDeadline},
		{"bad deadline time", CreateInput{TelegramID: tgPtr(100), Title: "t", Type: "online", Deadline: "2025-06-20", DeadlineTime: "25:00"}, ErrInvalidDeadline},
		{"bad event date", CreateInput{TelegramID: tgPtr(100), Title: "t", Type: "online", Deadline: "2025-06-20", EventDate: "tomorrow"}, ErrInvalidEventDate},
		{"district task without district", valid(101, "district"), ErrNoDistrict},
		{"blank title", CreateInput{TelegramID: tgPtr(100), Title: "   ", Type: "online", Deadline: "2025-06-20"}, ErrBlankTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			_, err := newService(repo, members).CreateFromBot(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.tasks, "no task must be created")
		})
	}

	t.Run("district task takes creator district", func(t *testing.T) {
		repo := newFakeRepo()
		in := valid(100, "district")
		in.DeadlineTime = "18:30"
		in.EventDate = "2025-06-21"
		in.EventTime = "10:00"

		task, err := newService(repo, members).CreateFromBot(context.Background(), in)
		require.NoError(t, err)

		stored := repo.tasks[task.ID]
		assert.Equal(t, "Субботник", stored.Title)
		assert.Equal(t, "desc", stored.Description)
		assert.Equal(t, model.TaskOpen, stored.Status)
		require.NotNil(t, stored.DistrictID)
		assert.Equal(t, model.ID(5), *stored.DistrictID)
		assert.Equal(t, "18:30", stored.DeadlineTime.String())
		assert.Equal(t, "2025-06-21", stored.EventDate.String())
		assert.Equal(t, "leader", *stored.CreatedByUsername)
		assert.Equal(t, int64(10), *stored.CreatedByUserID)
	})

	t.Run("regional task has no district", func(t *testing.T) {
		repo := newFakeRepo()
		task, err := newService(repo, members).CreateFromBot(context.Background(), valid(101, "regional"))
		require.NoError(t, err)
		assert.Nil(t, repo.tasks[task.ID].DistrictID)
	})

	t.Run("event time ignored without event date", func(t *testing.T) {
		repo := newFakeRepo()
		in := valid(100, "online")
		in.EventTime = "not a time"
		task, err := newService(repo, members).CreateFromBot(context.Background(), in)
		require.NoError(t, err)
		assert.Nil(t, repo.tasks[task.ID].EventTime)
	})
}

func TestListForViewer(t *testing.T) {
	repo := newFakeRepo()
	deadline, _ := model.ParseDate("2025-06-15")
	later, _ := model.ParseDate("2025-07-01")
	past, _ := model.ParseDate("2025-06-01")

	own, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "own", Type: model.TaskDistrict, DistrictID: idPtr(5), Deadline: deadline, Status: model.TaskOpen})
	foreign, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "foreign", Type: model.TaskDistrict, DistrictID: idPtr(6), Deadline: deadline, Status: model.TaskOpen})
	regional, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "regional", Type: model.TaskRegional, DistrictID: idPtr(6), Deadline: later, Status: model.TaskOpen})
	overdue, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "overdue", Type: model.TaskOnline, Deadline: past, Status: model.TaskOpen})

	leader := model.User{ID: 1, DistrictID: idPtr(5), Position: leaderPosition}
	neighbour := model.User{ID: 2, DistrictID: idPtr(5)}
	stranger := model.User{ID: 3, DistrictID: idPtr(6)}
	for _, u := range []model.User{leader, neighbour, stranger} {
		repo.users[u.ID] = u
	}
	_, _ = repo.ToggleSignup(context.Background(), own, neighbour.ID)
	_, _ = repo.ToggleSignup(context.Background(), regional, stranger.ID)
	_, _ = repo.ToggleSignup(context.Background(), regional, leader.ID)

	svc := newService(repo, nil)

	t.Run("leader sees own district with annotations", func(t *testing.T) {
		views, err := svc.ListForViewer(context.Background(), leader)
		require.NoError(t, err)

		ids := make([]model.ID, 0, len(views))
		byID := map[model.ID]TaskView{}
		for _, v := range views {
			ids = append(ids, v.ID)
			byID[v.ID] = v
		}
		assert.Equal(t, []model.ID{regional, own, overdue}, ids)
		assert.NotContains(t, ids, foreign)

		assert.Equal(t, 1, byID[own].DistrictSignupCount)
		assert.True(t, byID[own].CanManage)
		assert.False(t, byID[own].SignedUp)

		assert.Equal(t, 1, byID[regional].DistrictSignupCount, "only signups from the viewer's district count")
		assert.True(t, byID[regional].SignedUp)
		assert.False(t, byID[regional].CanManage)

		assert.True(t, byID[overdue].IsOverdue)
		assert.False(t, byID[overdue].IsActive)
	})

	t.Run("plain member gets no annotations", func(t *testing.T) {
		views, err := svc.ListForViewer(context.Background(), neighbour)
		require.NoError(t, err)
		for _, v := range views {
			assert.Zero(t, v.DistrictSignupCount)
			assert.Empty(t, v.DistrictSignups)
		}
	})

	t.Run("viewer without district sees everything", func(t *testing.T) {
		views, err := svc.ListForViewer(context.Background(), model.User{ID: 9})
		require.NoError(t, err)
		assert.Len(t, views, 4)
	})
}

func TestToggleSignupTwiceRestoresState(t *testing.T) {
	repo := newFakeRepo()
	id, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "t", Type: model.TaskOnline})
	svc := newService(repo, nil)

	signedUp, err := svc.ToggleSignup(context.Background(), id, 7)
	require.NoError(t, err)
	assert.True(t, signedUp)

	signedUp, err = svc.ToggleSignup(context.Background(), id, 7)
	require.NoError(t, err)
	assert.False(t, signedUp)
	assert.Empty(t, repo.signups[id])

	_, err = svc.ToggleSignup(context.Background(), 404, 7)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	leader := model.User{ID: 1, DistrictID: idPtr(5), Position: leaderPosition}
	deputy := model.User{ID: 2, DistrictID: idPtr(5), Position: deputyPosition}
	foreignLeader := model.User{ID: 3, DistrictID: idPtr(6), Position: leaderPosition}

	setup := func() (*fakeRepo, model.ID, model.ID) {
		repo := newFakeRepo()
		district, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "d", Type: model.TaskDistrict, DistrictID: idPtr(5), Status: model.TaskOpen})
		regional, _ := repo.Insert(context.Background(), database.InsertTaskDTO{Title: "r", Type: model.TaskRegional, DistrictID: idPtr(5), Status: model.TaskOpen})
		return repo, district, regional
	}

	edit := UpdateInput{Title: "new", Deadline: "2025-07-01", Status: "in_progress"}

	t.Run("leader edits own district task", func(t *testing.T) {
		repo, district, _ := setup()
		task, err := newService(repo, nil).Update(context.Background(), leader, district, edit)
		require.NoError(t, err)
		assert.Equal(t, "new", task.Title)
		assert.Equal(t, model.TaskInProgress, repo.tasks[district].Status)
	})

	t.Run("rejections", func(t *testing.T) {
		repo, district, regional := setup()
		svc := newService(repo, nil)

		_, err := svc.Update(context.Background(), deputy, district, edit)
		assert.ErrorIs(t, err, ErrNotPermitted)
		_, err = svc.Update(context.Background(), foreignLeader, district, edit)
		assert.ErrorIs(t, err, ErrNotPermitted)
		_, err = svc.Update(context.Background(), leader, regional, edit)
		assert.ErrorIs(t, err, ErrNotPermitted)

		assert.ErrorIs(t, svc.Delete(context.Background(), leader, regional), ErrNotPermitted)
		assert.ErrorIs(t, svc.Delete(context.Background(), deputy, district), ErrNotPermitted)
		assert.Len(t, repo.tasks, 2)
		assert.Equal(t, "d", repo.tasks[district].Title)
	})

	t.Run("invalid status", func(t *testing.T) {
		repo, district, _ := setup()
		_, err := newService(repo, nil).Update(context.Background(), leader, district, UpdateInput{Title: "x", Deadline: "2025-07-01", Status: "lost"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("leader deletes own district task", func(t *testing.T) {
		repo, district, _ := setup()
		require.NoError(t, newService(repo, nil).Delete(context.Background(), leader, district))
		assert.NotContains(t, repo.tasks, district)
	})
}
