package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/streak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlerTestDB(t *testing.T) func() {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.AdminUser{},
		&db.EmailOTP{},
		&db.MasterHabit{},
		&db.Habit{},
		&db.CompletionEntry{},
		&db.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// newTestAPI 固定时钟在 dateStr 当天中午（UTC 日界）
func newTestAPI(t *testing.T, dateStr string) *API {
	t.Helper()
	day, err := streak.ParseDate(dateStr)
	if err != nil {
		t.Fatalf("invalid test date %q: %v", dateStr, err)
	}
	clock := streak.FixedClock(day.Add(12*time.Hour), time.UTC)
	return NewAPI(db.DB, Options{
		JWTSecret: "test-secret",
		OTPTTL:    10 * time.Minute,
		Clock:     clock,
	})
}

func seedHandlerUser(t *testing.T, email string) *db.User {
	t.Helper()
	user := db.User{Email: email}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func authedContext(w *httptest.ResponseRecorder, userID uint, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(currentUserKey, userID)
	return c
}

func TestToggleHabitRoundTrip(t *testing.T) {
	cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, "2024-05-10")
	user := seedHandlerUser(t, "toggle@habityfy.dev")

	habit := db.Habit{UserID: user.ID, Name: "晨跑", Cadence: "daily", IsActive: true}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	idStr := strconv.Itoa(int(habit.ID))

	// 空请求体默认打当天的卡
	req := httptest.NewRequest(http.MethodPost, "/api/habits/"+idStr+"/toggle", nil)
	w := httptest.NewRecorder()
	c := authedContext(w, user.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.ToggleHabit(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Date          string `json:"date"`
		Completed     bool   `json:"completed"`
		CurrentStreak int    `json:"current_streak"`
		MaxStreak     int    `json:"max_streak"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2024-05-10" || !resp.Completed || resp.CurrentStreak != 1 || resp.MaxStreak != 1 {
		t.Fatalf("unexpected toggle response: %+v", resp)
	}

	// 指定同一天再切一次，回到未完成
	body, _ := json.Marshal(map[string]any{"date": "2024-05-10"})
	req = httptest.NewRequest(http.MethodPost, "/api/habits/"+idStr+"/toggle", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	c = authedContext(w, user.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.ToggleHabit(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Completed || resp.CurrentStreak != 0 || resp.MaxStreak != 0 {
		t.Fatalf("expected uncompleted state, got %+v", resp)
	}
}

func TestToggleHabitInvalidDate(t *testing.T) {
	cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, "2024-05-10")
	user := seedHandlerUser(t, "baddate@habityfy.dev")

	habit := db.Habit{UserID: user.ID, Name: "晨跑", Cadence: "daily", IsActive: true}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	idStr := strconv.Itoa(int(habit.ID))

	body, _ := json.Marshal(map[string]any{"date": "05/10/2024"})
	req := httptest.NewRequest(http.MethodPost, "/api/habits/"+idStr+"/toggle", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := authedContext(w, user.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.ToggleHabit(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestGetHabitScopedToOwner(t *testing.T) {
	cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, "2024-05-10")
	owner := seedHandlerUser(t, "owner@habityfy.dev")
	other := seedHandlerUser(t, "other@habityfy.dev")

	habit := db.Habit{UserID: owner.ID, Name: "晨跑", Cadence: "daily", IsActive: true}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	idStr := strconv.Itoa(int(habit.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/habits/"+idStr, nil)
	w := httptest.NewRecorder()
	c := authedContext(w, other.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.GetHabit(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign habit, got %d", w.Code)
	}
}

func TestSetHabitActiveRequiresFlag(t *testing.T) {
	cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, "2024-05-10")
	user := seedHandlerUser(t, "pause@habityfy.dev")

	habit := db.Habit{UserID: user.ID, Name: "晨跑", Cadence: "daily", IsActive: true}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	idStr := strconv.Itoa(int(habit.ID))

	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/api/habits/"+idStr+"/active", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c := authedContext(w, user.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.SetHabitActive(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without active flag, got %d", w.Code)
	}
}

func TestGetHabitCalendarWeeklyRange(t *testing.T) {
	cleanup := setupHandlerTestDB(t)
	defer cleanup()

	api := newTestAPI(t, "2024-05-10")
	user := seedHandlerUser(t, "calendar@habityfy.dev")

	habit := db.Habit{UserID: user.ID, Name: "晨跑", Cadence: "daily", IsActive: true}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	entries := []db.CompletionEntry{
		{HabitID: habit.ID, LogDate: "2024-05-06", Completed: true},
		{HabitID: habit.ID, LogDate: "2024-05-12", Completed: true},
		{HabitID: habit.ID, LogDate: "2024-05-13", Completed: true}, // 下一周，不应返回
	}
	if err := db.DB.Create(&entries).Error; err != nil {
		t.Fatalf("failed to seed entries: %v", err)
	}
	idStr := strconv.Itoa(int(habit.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/habits/"+idStr+"/calendar?view=weekly&start=2024-05-08", nil)
	w := httptest.NewRecorder()
	c := authedContext(w, user.ID, req)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idStr}}

	api.GetHabitCalendar(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries []struct {
			Date string `json:"date"`
		} `json:"entries"`
		Range struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"range"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Range.Start != "2024-05-06" || resp.Range.End != "2024-05-12" {
		t.Fatalf("unexpected range: %+v", resp.Range)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries inside the week, got %+v", resp.Entries)
	}
}
