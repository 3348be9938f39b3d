package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type ID = uint

type DepartmentType string

const (
	DepartmentApparat  DepartmentType = "apparat"
	DepartmentDistrict DepartmentType = "district"
)

type District struct {
	ID        ID        `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name      string  `json:"name" db:"name"`
	Code      string  `json:"code" db:"code"`
	TeamPhoto *string `json:"teamPhoto,omitempty" db:"team_photo"`
}

type Position struct {
	ID           ID             `json:"id" db:"id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description" db:"description"`
	Capabilities pq.StringArray `json:"capabilities" db:"capabilities"`
}

type User struct {
	ID        ID        `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`

	FirstName  string `json:"firstName" db:"first_name"`
	LastName   string `json:"lastName" db:"last_name"`
	MiddleName string `json:"middleName" db:"middle_name"`
	Email      string `json:"email" db:"email"`

	DepartmentType *DepartmentType `json:"departmentType,omitempty" db:"department_type"`
	TelegramID     *int64          `json:"telegramId,omitempty" db:"telegram_id"`

	DistrictID     *ID  `json:"districtId,omitempty" db:"district_id"`
	PositionID     *ID  `json:"positionId,omitempty" db:"position_id"`
	IsDistrictHead bool `json:"isDistrictHead" db:"is_district_head"`
	IsAdmin        bool `json:"isAdmin" db:"is_admin"`

	Avatar *string `json:"avatar,omitempty" db:"avatar"`

	// Loaded by the user DAO through joins, never written directly.
	District *District `json:"district,omitempty" db:"-"`
	Position *Position `json:"position,omitempty" db:"-"`
}

// FullName is "Last First Middle" with blanks skipped.
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ShortName is "Last F. M.".
func (u User) ShortName() string {
	parts := []string{u.LastName}
	for _, p := range []string{u.FirstName, u.MiddleName} {
		if r := []rune(p); len(r) > 0 {
			parts = append(parts, strings.ToUpper(string(r[0]))+".")
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// DisplayName falls back to the username when no name parts are set.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

func SameDistrict(a, b *ID) bool {
	return a != nil && b != nil && *a == *b
}

type TaskType string

const (
	TaskMobilization TaskType = "mobilization"
	TaskRegional     TaskType = "regional"
	TaskDistrict     TaskType = "district"
	TaskOnline       TaskType = "online"
	TaskHelp         TaskType = "help"
)

var TaskTypes = []TaskType{TaskMobilization, TaskRegional, TaskDistrict, TaskOnline, TaskHelp}

type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskArchived   TaskStatus = "archived"
)

var TaskStatuses = []TaskStatus{TaskOpen, TaskInProgress, TaskDone, TaskArchived}

type Task struct {
	ID        ID        `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	Deadline     Date       `json:"deadline" db:"deadline"`
	DeadlineTime *TimeOfDay `json:"deadlineTime,omitempty" db:"deadline_time"`
	EventDate    *Date      `json:"eventDate,omitempty" db:"event_date"`
	EventTime    *TimeOfDay `json:"eventTime,omitempty" db:"event_time"`

	Type       TaskType   `json:"type" db:"type"`
	Status     TaskStatus `json:"status" db:"status"`
	DistrictID *ID        `json:"districtId,omitempty" db:"district_id"`

	CreatedByUsername *string `json:"createdByUsername,omitempty" db:"created_by_username"`
	CreatedByUserID   *int64  `json:"createdByUserId,omitempty" db:"created_by_user_id"`
}

// IsActive reports whether the deadline has not passed yet.
func (t Task) IsActive(now time.Time) bool {
	return !t.Deadline.Before(DateOf(now).Time)
}

// IsOverdue reports whether the deadline passed and the task is not done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Deadline.Before(DateOf(now).Time) && t.Status != TaskDone
}

type EventType string

const (
	EventOfficial  EventType = "official"
	EventOrganized EventType = "organized"
)

type EventImportance struct {
	ID     ID     `json:"id" db:"id"`
	Level  string `json:"level" db:"level"`
	Weight int    `json:"weight" db:"weight"`
}

type Event struct {
	ID                ID        `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Date              Date      `json:"date" db:"date"`
	Type              EventType `json:"type" db:"event_type"`
	ImportanceID      *ID       `json:"importanceId,omitempty" db:"importance_id"`
	ParticipantsCount int       `json:"participantsCount" db:"participants_count"`
}

type ParticipationRole string

const (
	RoleDelegate  ParticipationRole = "delegate"
	RoleVolunteer ParticipationRole = "volunteer"
	RoleListener  ParticipationRole = "listener"
	RoleOrganizer ParticipationRole = "organizer"
)

var ParticipationRoles = []ParticipationRole{RoleDelegate, RoleVolunteer, RoleListener, RoleOrganizer}

const DefaultParticipationStatus = "Завершено"

type Participation struct {
	ID      ID                `json:"id" db:"id"`
	UserID  ID                `json:"userId" db:"user_id"`
	EventID ID                `json:"eventId" db:"event_id"`
	Role    ParticipationRole `json:"role" db:"role"`
	Status  string            `json:"status" db:"status"`
}
