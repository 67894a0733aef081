package service

import (
	"errors"
	"testing"
	"time"

	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/streak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
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
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func createTestUser(t *testing.T, email string) *db.User {
	t.Helper()
	user := db.User{Email: email}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

// testClock 固定在 dateStr 当天中午（UTC 日界）
func testClock(dateStr string) streak.Clock {
	day, err := streak.ParseDate(dateStr)
	if err != nil {
		panic(err)
	}
	return streak.FixedClock(day.Add(12*time.Hour), time.UTC)
}

func TestHabitServiceCreateAndList(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "a@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(user.ID, HabitInput{
		Name:    "晨跑",
		Cadence: "daily",
		TypeTag: "健康",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if habit.ID == 0 {
		t.Fatal("expected habit to have ID")
	}
	if !habit.IsActive {
		t.Fatal("expected new habit to be active")
	}

	habits, err := svc.List(user.ID, HabitFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(habits) != 1 {
		t.Fatalf("expected 1 habit, got %d", len(habits))
	}

	// 不合法频率
	if _, err := svc.Create(user.ID, HabitInput{Name: "阅读", Cadence: "yearly"}); !errors.Is(err, ErrHabitInvalidCadence) {
		t.Fatalf("expected ErrHabitInvalidCadence, got %v", err)
	}
}

func TestHabitServiceOwnershipScoping(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	owner := createTestUser(t, "owner@habityfy.dev")
	other := createTestUser(t, "other@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(owner.ID, HabitInput{Name: "冥想", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Get(other.ID, habit.ID); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected ErrHabitNotFound for other user, got %v", err)
	}
	if _, err := svc.Toggle(other.ID, habit.ID, ""); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected ErrHabitNotFound on toggle, got %v", err)
	}
}

func TestHabitToggleDailyLifecycle(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "daily@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(user.ID, HabitInput{Name: "写日记", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	outcome, err := svc.Toggle(user.ID, habit.ID, "")
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !outcome.Completed || outcome.Date != "2024-05-10" {
		t.Fatalf("unexpected outcome: completed=%v date=%s", outcome.Completed, outcome.Date)
	}
	if outcome.CurrentStreak != 1 || outcome.MaxStreak != 1 {
		t.Fatalf("unexpected streaks: current=%d max=%d", outcome.CurrentStreak, outcome.MaxStreak)
	}

	// 连胜计数写回习惯记录
	stored, err := svc.Get(user.ID, habit.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.CurrentStreak != 1 || stored.MaxStreak != 1 {
		t.Fatalf("expected streaks persisted, got current=%d max=%d", stored.CurrentStreak, stored.MaxStreak)
	}

	// 再次切换：记录保留但翻转为未完成
	outcome, err = svc.Toggle(user.ID, habit.ID, "2024-05-10")
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if outcome.Completed {
		t.Fatal("expected second toggle to uncomplete")
	}
	if outcome.CurrentStreak != 0 || outcome.MaxStreak != 0 {
		t.Fatalf("unexpected streaks after uncomplete: current=%d max=%d", outcome.CurrentStreak, outcome.MaxStreak)
	}

	var rows []db.CompletionEntry
	if err := db.DB.Where("habit_id = ?", habit.ID).Find(&rows).Error; err != nil {
		t.Fatalf("failed to load entries: %v", err)
	}
	if len(rows) != 1 || rows[0].Completed || rows[0].CompletedAt != nil {
		t.Fatalf("expected single uncompleted row, got %+v", rows)
	}
}

func TestHabitToggleWeeklyClearsWeek(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	// 2024-05-09 周四，所在周 05-06 至 05-12
	user := createTestUser(t, "weekly@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-09"))

	habit, err := svc.Create(user.ID, HabitInput{Name: "大扫除", Cadence: "weekly"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	outcome, err := svc.Toggle(user.ID, habit.ID, "2024-05-06")
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !outcome.Completed || outcome.CurrentStreak != 1 {
		t.Fatalf("unexpected outcome: completed=%v current=%d", outcome.Completed, outcome.CurrentStreak)
	}

	// 同周另一天再次打卡：整周取消，记录删除
	outcome, err = svc.Toggle(user.ID, habit.ID, "2024-05-09")
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if outcome.Completed || !outcome.WeekCleared {
		t.Fatalf("expected week cleared, got completed=%v cleared=%v", outcome.Completed, outcome.WeekCleared)
	}
	if outcome.CurrentStreak != 0 || outcome.MaxStreak != 0 {
		t.Fatalf("unexpected streaks: current=%d max=%d", outcome.CurrentStreak, outcome.MaxStreak)
	}

	var count int64
	if err := db.DB.Model(&db.CompletionEntry{}).Where("habit_id = ?", habit.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected week entries removed, got %d rows", count)
	}
}

func TestHabitToggleInvalidDate(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "invalid@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(user.ID, HabitInput{Name: "喝水", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Toggle(user.ID, habit.ID, "2024-13-40"); !errors.Is(err, streak.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	var count int64
	db.DB.Model(&db.CompletionEntry{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no entries after invalid toggle, got %d", count)
	}
}

func TestHabitUserTimezoneOverridesDayBoundary(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "tz@habityfy.dev")
	if err := db.DB.Model(&db.User{}).Where("id = ?", user.ID).Update("timezone", "Asia/Shanghai").Error; err != nil {
		t.Fatalf("failed to set timezone: %v", err)
	}

	// UTC 2024-05-01 20:00，上海已是 5 月 2 日
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	svc := NewHabitService(db.DB, streak.FixedClock(now, time.UTC))

	habit, err := svc.Create(user.ID, HabitInput{Name: "早睡", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	outcome, err := svc.Toggle(user.ID, habit.ID, "")
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if outcome.Date != "2024-05-02" {
		t.Fatalf("expected user timezone to decide today, got %s", outcome.Date)
	}
}

func TestAdoptFromCatalog(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "adopt@habityfy.dev")
	master := db.MasterHabit{
		Name:           "每日阅读",
		Slug:           "daily-reading",
		Description:    "读 30 分钟书",
		TypeTag:        "学习",
		DefaultCadence: "daily",
		Status:         "active",
	}
	if err := db.DB.Create(&master).Error; err != nil {
		t.Fatalf("failed to create master habit: %v", err)
	}

	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.AdoptFromCatalog(user.ID, "daily-reading", HabitInput{Cadence: "weekly"})
	if err != nil {
		t.Fatalf("AdoptFromCatalog returned error: %v", err)
	}
	if habit.Name != "每日阅读" || habit.Cadence != "weekly" {
		t.Fatalf("unexpected adopted habit: name=%s cadence=%s", habit.Name, habit.Cadence)
	}
	if habit.MasterHabitID == nil || *habit.MasterHabitID != master.ID {
		t.Fatal("expected adopted habit to reference catalog entry")
	}

	if _, err := svc.AdoptFromCatalog(user.ID, "missing", HabitInput{}); !errors.Is(err, ErrCatalogEntryNotFound) {
		t.Fatalf("expected ErrCatalogEntryNotFound, got %v", err)
	}
}

func TestHabitDeleteRemovesHistory(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "delete@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(user.ID, HabitInput{Name: "拉伸", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Toggle(user.ID, habit.ID, ""); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	if err := svc.Delete(user.ID, habit.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	var count int64
	db.DB.Model(&db.CompletionEntry{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected history removed with habit, got %d rows", count)
	}
}

func TestEntriesBetween(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "range@habityfy.dev")
	svc := NewHabitService(db.DB, testClock("2024-05-10"))

	habit, err := svc.Create(user.ID, HabitInput{Name: "背单词", Cadence: "daily"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for _, date := range []string{"2024-05-01", "2024-05-05", "2024-05-20"} {
		if _, err := svc.Toggle(user.ID, habit.ID, date); err != nil {
			t.Fatalf("Toggle returned error: %v", err)
		}
	}

	entries, err := svc.EntriesBetween(user.ID, habit.ID, "2024-05-01", "2024-05-10")
	if err != nil {
		t.Fatalf("EntriesBetween returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(entries))
	}
	if entries[0].LogDate != "2024-05-01" || entries[1].LogDate != "2024-05-05" {
		t.Fatalf("unexpected order: %s, %s", entries[0].LogDate, entries[1].LogDate)
	}

	if _, err := svc.EntriesBetween(user.ID, habit.ID, "bad", "2024-05-10"); !errors.Is(err, streak.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
