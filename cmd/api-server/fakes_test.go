package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/linkstore"
	"github.com/protomem/district-tasks/internal/media"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/service/directory"
	"github.com/protomem/district-tasks/internal/service/ledger"
	"github.com/protomem/district-tasks/internal/service/linking"
	"github.com/protomem/district-tasks/internal/service/tasks"
	"github.com/protomem/district-tasks/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	_testBotToken = "bot-secret"
	_testPassword = "correct-horse"
	_testPrefix   = "test"
)

// memberStore backs the directory, tasks and linking services in handler
// tests.
type memberStore struct {
	mu        sync.Mutex
	users     map[model.ID]model.User
	districts map[model.ID]model.District
	positions map[model.ID]model.Position
	tasks     map[model.ID]model.Task
	signups   map[model.ID]map[model.ID]bool
	updates   int
	nextID    model.ID
}

func newMemberStore() *memberStore {
	return &memberStore{
		users:     map[model.ID]model.User{},
		districts: map[model.ID]model.District{},
		positions: map[model.ID]model.Position{},
		tasks:     map[model.ID]model.Task{},
		signups:   map[model.ID]map[model.ID]bool{},
		nextID:    100,
	}
}

func (s *memberStore) id() model.ID {
	s.nextID++
	return s.nextID
}

func (s *memberStore) addUser(t *testing.T, u model.User) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(_testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.id()
	}
	u.PasswordHash = string(hash)
	s.users[u.ID] = u
	return u
}

func (s *memberStore) user(id model.ID) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// Users

func (s *memberStore) Find(_ context.Context, filter database.FindUserFilter, _ database.FindOptions) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.User
	for _, u := range s.users {
		if filter.ExcludeID != nil && u.ID == *filter.ExcludeID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *memberStore) Get(_ context.Context, id model.ID) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.NewError("user", model.ErrNotFound)
	}
	return u, nil
}

func (s *memberStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return model.User{}, model.NewError("user", model.ErrNotFound)
}

func (s *memberStore) GetByTelegramID(_ context.Context, telegramID int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return u, nil
		}
	}
	return model.User{}, model.NewError("user", model.ErrNotFound)
}

func (s *memberStore) HasDistrictHead(_ context.Context, district model.ID, except *model.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if except != nil && u.ID == *except {
			continue
		}
		if u.IsDistrictHead && model.SameDistrict(u.DistrictID, &district) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memberStore) Insert(_ context.Context, dto database.InsertUserDTO) (model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := model.User{
		ID:             s.id(),
		Username:       dto.Username,
		PasswordHash:   dto.PasswordHash,
		FirstName:      dto.FirstName,
		LastName:       dto.LastName,
		MiddleName:     dto.MiddleName,
		Email:          dto.Email,
		DepartmentType: dto.DepartmentType,
		DistrictID:     dto.DistrictID,
		PositionID:     dto.PositionID,
		IsDistrictHead: dto.IsDistrictHead,
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *memberStore) Update(_ context.Context, id model.ID, dto database.UpdateUserDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.NewError("user", model.ErrNotFound)
	}

	if dto.TelegramID != nil {
		for _, other := range s.users {
			if other.ID != id && other.TelegramID != nil && *other.TelegramID == *dto.TelegramID {
				return model.NewError("user", model.ErrTelegramTaken)
			}
		}
		tid := *dto.TelegramID
		u.TelegramID = &tid
	}
	if dto.Username != nil {
		u.Username = *dto.Username
	}
	if dto.Avatar != nil {
		u.Avatar = dto.Avatar
	}

	s.users[id] = u
	s.updates++
	return nil
}

func (s *memberStore) Delete(_ context.Context, id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	return nil
}

type districtStore struct{ *memberStore }

func (s districtStore) Find(context.Context) ([]model.District, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.District, 0, len(s.districts))
	for _, d := range s.districts {
		out = append(out, d)
	}
	return out, nil
}

func (s districtStore) Get(_ context.Context, id model.ID) (model.District, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.districts[id]
	if !ok {
		return model.District{}, model.NewError("district", model.ErrNotFound)
	}
	return d, nil
}

func (s districtStore) Insert(_ context.Context, dto database.InsertDistrictDTO) (model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := model.District{ID: s.id(), Name: dto.Name, Code: dto.Code}
	s.districts[d.ID] = d
	return d.ID, nil
}

func (s districtStore) Update(_ context.Context, id model.ID, dto database.UpdateDistrictDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.districts[id]
	if !ok {
		return model.NewError("district", model.ErrNotFound)
	}
	if dto.TeamPhoto != nil {
		d.TeamPhoto = dto.TeamPhoto
	}
	s.districts[id] = d
	return nil
}

type positionStore struct{ *memberStore }

func (s positionStore) Find(_ context.Context, _ database.FindPositionFilter) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s positionStore) Get(_ context.Context, id model.ID) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return model.Position{}, model.NewError("position", model.ErrNotFound)
	}
	return p, nil
}

func (s positionStore) Insert(_ context.Context, dto database.InsertPositionDTO) (model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := model.Position{ID: s.id(), Title: dto.Title, Description: dto.Description, Capabilities: dto.Capabilities}
	s.positions[p.ID] = p
	return p.ID, nil
}

type taskStore struct{ *memberStore }

func (s taskStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s taskStore) Find(_ context.Context, _ database.FindTaskFilter, _ database.FindOptions) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s taskStore) Get(_ context.Context, id model.ID) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.NewError("task", model.ErrNotFound)
	}
	return t, nil
}

func (s taskStore) Insert(_ context.Context, dto database.InsertTaskDTO) (model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.Task{
		ID:                s.id(),
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
	s.tasks[t.ID] = t
	return t.ID, nil
}

func (s taskStore) Update(_ context.Context, id model.ID, dto database.UpdateTaskDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.NewError("task", model.ErrNotFound)
	}
	t.Title, t.Description, t.Status = dto.Title, dto.Description, dto.Status
	s.tasks[id] = t
	return nil
}

func (s taskStore) Delete(_ context.Context, id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}

func (s taskStore) ToggleSignup(_ context.Context, task, user model.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signups[task] == nil {
		s.signups[task] = map[model.ID]bool{}
	}
	if s.signups[task][user] {
		delete(s.signups[task], user)
		return false, nil
	}
	s.signups[task][user] = true
	return true, nil
}

func (s taskStore) SignedUpTasks(_ context.Context, user model.ID, ids []model.ID) (map[model.ID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[model.ID]bool{}
	for _, id := range ids {
		if s.signups[id][user] {
			out[id] = true
		}
	}
	return out, nil
}

func (s taskStore) DistrictSignups(context.Context, model.ID, []model.ID) (map[model.ID][]model.User, error) {
	return map[model.ID][]model.User{}, nil
}

type testEnv struct {
	app    *application
	store  *memberStore
	links  *linkstore.Store
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemberStore()
	links := linkstore.New(rdb, _testPrefix)

	var cfg config
	cfg.bot.apiToken = _testBotToken

	app := &application{
		config: cfg,
		redis:  rdb,
		logger: logger,
		sessions: session.NewManager(logger, rdb, session.Options{
			Prefix: _testPrefix,
			Secret: "test-secret",
			TTL:    time.Hour,
		}),
		media:     media.NewStorage(t.TempDir(), "/media/"),
		directory: directory.NewService(logger, store, districtStore{store}, positionStore{store}),
		tasks:     tasks.NewService(logger, taskStore{store}, store),
		linking:   linking.NewService(logger, links, store),
		ledger:    ledger.NewService(logger, nil, nil, nil),
	}

	server := httptest.NewServer(app.routes())
	t.Cleanup(server.Close)

	return &testEnv{app: app, store: store, links: links, server: server}
}

// client keeps cookies and does not follow redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) login(t *testing.T, c *http.Client, username string) {
	t.Helper()

	res, err := c.PostForm(e.server.URL+"/login", url.Values{
		"username": {username},
		"password": {_testPassword},
	})
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/", res.Header.Get("Location"))
}
