package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2025, 12, 3, 15, 0, 0, 0, time.Local)))
	assert.Equal(t, "2025-12-03", d.String())

	require.NoError(t, d.Scan("2024-01-31T00:00:00Z"))
	assert.Equal(t, "2024-01-31", d.String())

	assert.Error(t, d.Scan(42))
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan("18:30:00"))
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 30}, tod)

	require.NoError(t, tod.Scan([]byte("07:05")))
	assert.Equal(t, "07:05", tod.String())

	_, err := ParseTimeOfDay("25:99")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-05-09"}`), &payload))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-05-09"}`, string(out))
}

func TestTaskDeadlineFlags(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday, _ := ParseDate("2025-06-09")
	today, _ := ParseDate("2025-06-10")

	task := Task{Deadline: today, Status: TaskOpen}
	assert.True(t, task.IsActive(now))
	assert.False(t, task.IsOverdue(now))

	task.Deadline = yesterday
	assert.False(t, task.IsActive(now))
	assert.True(t, task.IsOverdue(now))

	task.Status = TaskDone
	assert.False(t, task.IsOverdue(now))
}

func TestUserNames(t *testing.T) {
	u := User{Username: "ivanov", LastName: "Иванов", FirstName: "иван", MiddleName: "Петрович"}
	assert.Equal(t, "Иванов иван Петрович", u.FullName())
	assert.Equal(t, "Иванов И. П.", u.ShortName())
	assert.Equal(t, "ivanov", User{Username: "ivanov"}.DisplayName())
}
