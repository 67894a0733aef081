package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/streak"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在或不属于当前用户时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidCadence 当频率配置异常时返回
	ErrHabitInvalidCadence = errors.New("invalid habit cadence")
	// ErrCatalogEntryNotFound 在目录条目不存在或未上架时返回
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")
)

// HabitService 负责用户习惯的增删改查与打卡编排
// 连胜推导交给 streak 引擎，本服务只做记录加载与变更落库
// 所有查询都以 user_id 为边界，越权访问一律表现为 not found

type HabitService struct {
	db    *gorm.DB
	clock streak.Clock
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	ActiveOnly bool
	Cadence    string
	TypeTag    string
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	Name         string
	Description  string
	Cadence      string
	TypeTag      string
	ReminderTime string
}

// ToggleOutcome 汇总一次打卡切换对外可见的结果
type ToggleOutcome struct {
	Habit         *db.Habit
	Date          string
	Completed     bool
	WeekCleared   bool
	CurrentStreak int
	MaxStreak     int
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB, clock streak.Clock) *HabitService {
	return &HabitService{db: gdb, clock: clock}
}

// List 返回用户的习惯集合，支持基本筛选
func (s *HabitService) List(userID uint, filter HabitFilter) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.Model(&db.Habit{}).Where("user_id = ?", userID)

	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Cadence != "" {
		query = query.Where("cadence = ?", filter.Cadence)
	}
	if filter.TypeTag != "" {
		query = query.Where("type_tag = ?", filter.TypeTag)
	}

	if err := query.Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取当前用户的习惯
func (s *HabitService) Get(userID, id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ?", userID).First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建自定义习惯
func (s *HabitService) Create(userID uint, input HabitInput) (*db.Habit, error) {
	cadence, err := normalizeCadence(input.Cadence)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("habit name is required")
	}

	habit := db.Habit{
		UserID:       userID,
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Cadence:      cadence,
		TypeTag:      strings.TrimSpace(input.TypeTag),
		IsActive:     true,
		ReminderTime: strings.TrimSpace(input.ReminderTime),
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// AdoptFromCatalog 从目录领取习惯，input 中的非空字段覆盖目录默认值
func (s *HabitService) AdoptFromCatalog(userID uint, slug string, input HabitInput) (*db.Habit, error) {
	var master db.MasterHabit
	if err := s.db.Where("slug = ? AND status = ?", strings.TrimSpace(slug), "active").First(&master).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCatalogEntryNotFound
		}
		return nil, fmt.Errorf("find catalog entry: %w", err)
	}

	cadence := master.DefaultCadence
	if strings.TrimSpace(input.Cadence) != "" {
		cadence = input.Cadence
	}
	normalized, err := normalizeCadence(cadence)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = master.Name
	}

	habit := db.Habit{
		UserID:        userID,
		MasterHabitID: &master.ID,
		Name:          name,
		Description:   master.Description,
		Cadence:       normalized,
		TypeTag:       master.TypeTag,
		IsActive:      true,
		ReminderTime:  strings.TrimSpace(input.ReminderTime),
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("adopt habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯基础字段，不触碰打卡历史
func (s *HabitService) Update(userID, id uint, input HabitInput) (*db.Habit, error) {
	cadence, err := normalizeCadence(input.Cadence)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("habit name is required")
	}

	habit, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	habit.Name = strings.TrimSpace(input.Name)
	habit.Description = strings.TrimSpace(input.Description)
	habit.Cadence = cadence
	habit.TypeTag = strings.TrimSpace(input.TypeTag)
	habit.ReminderTime = strings.TrimSpace(input.ReminderTime)

	if err := s.db.Save(habit).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return habit, nil
}

// SetActive 切换习惯的启用状态，历史记录保持不动
func (s *HabitService) SetActive(userID, id uint, active bool) (*db.Habit, error) {
	habit, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	habit.IsActive = active
	if err := s.db.Save(habit).Error; err != nil {
		return nil, fmt.Errorf("set habit active: %w", err)
	}
	return habit, nil
}

// Delete 删除习惯及其全部打卡历史
func (s *HabitService) Delete(userID, id uint) error {
	habit, err := s.Get(userID, id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.CompletionEntry{}).Error; err != nil {
			return fmt.Errorf("delete habit history: %w", err)
		}
		if err := tx.Delete(&db.Habit{}, habit.ID).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

// Toggle 切换 targetDate（空则为今天）的完成状态并落库
// 引擎在内存中完成变更推导，随后在一个事务里套用差异：
// 周习惯的整周取消删除整段记录，其余情况按日期 upsert 单条
func (s *HabitService) Toggle(userID, habitID uint, targetDate string) (*ToggleOutcome, error) {
	habit, err := s.Get(userID, habitID)
	if err != nil {
		return nil, err
	}

	clock, err := s.clockFor(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.historyRows(habitID)
	if err != nil {
		return nil, err
	}

	result, err := streak.Toggle(entriesFromRows(rows), streak.Cadence(habit.Cadence), targetDate, clock)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(result.RemovedDates) > 0 {
			if err := tx.Where("habit_id = ? AND log_date IN ?", habit.ID, result.RemovedDates).
				Delete(&db.CompletionEntry{}).Error; err != nil {
				return fmt.Errorf("remove week entries: %w", err)
			}
		} else if result.ChangedDate != "" {
			if err := upsertEntry(tx, habit.ID, rows, result); err != nil {
				return err
			}
		}

		habit.CurrentStreak = result.CurrentStreak
		habit.MaxStreak = result.MaxStreak
		if err := tx.Model(&db.Habit{}).Where("id = ?", habit.ID).
			Updates(map[string]any{"current_streak": result.CurrentStreak, "max_streak": result.MaxStreak}).Error; err != nil {
			return fmt.Errorf("update habit streaks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	date := targetDate
	if date == "" {
		date = clock.TodayString()
	}

	return &ToggleOutcome{
		Habit:         habit,
		Date:          date,
		Completed:     result.Completed,
		WeekCleared:   len(result.RemovedDates) > 0,
		CurrentStreak: result.CurrentStreak,
		MaxStreak:     result.MaxStreak,
	}, nil
}

// StatusOn 查询某天（周习惯则为所在周）的完成状态，只读
func (s *HabitService) StatusOn(userID, habitID uint, date string) (streak.Status, error) {
	habit, err := s.Get(userID, habitID)
	if err != nil {
		return streak.Status{}, err
	}

	rows, err := s.historyRows(habitID)
	if err != nil {
		return streak.Status{}, err
	}

	return streak.StatusOn(entriesFromRows(rows), streak.Cadence(habit.Cadence), date)
}

// EntriesBetween 返回日期区间内的打卡记录，YYYY-MM-DD 字符串可直接比较
func (s *HabitService) EntriesBetween(userID, habitID uint, start, end string) ([]db.CompletionEntry, error) {
	if _, err := streak.ParseDate(start); err != nil {
		return nil, err
	}
	if _, err := streak.ParseDate(end); err != nil {
		return nil, err
	}

	if _, err := s.Get(userID, habitID); err != nil {
		return nil, err
	}

	var rows []db.CompletionEntry
	if err := s.db.Where("habit_id = ?", habitID).
		Where("log_date BETWEEN ? AND ?", start, end).
		Order("log_date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list completion entries: %w", err)
	}
	return rows, nil
}

// Clock 暴露服务的参考时钟，供 handler 解析日期区间时复用
func (s *HabitService) Clock() streak.Clock {
	return s.clock
}

// clockFor 在用户配置了合法时区时覆盖日界策略
func (s *HabitService) clockFor(userID uint) (streak.Clock, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.clock, nil
		}
		return s.clock, fmt.Errorf("load user: %w", err)
	}

	tz := strings.TrimSpace(user.Timezone)
	if tz == "" {
		return s.clock, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return s.clock, nil
	}
	return streak.Clock{NowFunc: s.clock.NowFunc, Location: loc}, nil
}

// historyRows 按插入顺序加载打卡历史
func (s *HabitService) historyRows(habitID uint) ([]db.CompletionEntry, error) {
	var rows []db.CompletionEntry
	if err := s.db.Where("habit_id = ?", habitID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load habit history: %w", err)
	}
	return rows, nil
}

func entriesFromRows(rows []db.CompletionEntry) []streak.Entry {
	entries := make([]streak.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, streak.Entry{
			Date:        row.LogDate,
			Completed:   row.Completed,
			CompletedAt: row.CompletedAt,
		})
	}
	return entries
}

// upsertEntry 把引擎对 ChangedDate 的变更写回数据库
func upsertEntry(tx *gorm.DB, habitID uint, rows []db.CompletionEntry, result streak.Result) error {
	var changed *streak.Entry
	for i := range result.Entries {
		if result.Entries[i].Date == result.ChangedDate {
			changed = &result.Entries[i]
			break
		}
	}
	if changed == nil {
		return nil
	}

	// 同日重复记录以先出现者为准，与引擎的查找语义一致
	for i := range rows {
		if rows[i].LogDate == result.ChangedDate {
			return tx.Model(&db.CompletionEntry{}).Where("id = ?", rows[i].ID).
				Updates(map[string]any{"completed": changed.Completed, "completed_at": changed.CompletedAt}).Error
		}
	}

	entry := db.CompletionEntry{
		HabitID:     habitID,
		LogDate:     changed.Date,
		Completed:   changed.Completed,
		CompletedAt: changed.CompletedAt,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("create completion entry: %w", err)
	}
	return nil
}

func normalizeCadence(cadence string) (string, error) {
	normalized := strings.TrimSpace(strings.ToLower(cadence))
	if normalized == "" {
		return string(streak.CadenceDaily), nil
	}
	switch streak.Cadence(normalized) {
	case streak.CadenceDaily, streak.CadenceWeekly, streak.CadenceCustom:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: unsupported cadence %s", ErrHabitInvalidCadence, cadence)
	}
}
