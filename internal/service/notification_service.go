package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/habityfy/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotificationNotFound 在通知不存在或不属于当前用户时返回
var ErrNotificationNotFound = errors.New("notification not found")

// 连胜里程碑的步长：每累计 7 天/周提醒一次
const streakMilestoneStep = 7

// NotificationService 负责站内通知的生成与查询
// ObserveToggle 在打卡成功后由 handler 调用，属于引擎之外的副作用

type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService 构造 NotificationService
func NewNotificationService(gdb *gorm.DB) *NotificationService {
	return &NotificationService{db: gdb, now: time.Now}
}

// List 返回用户的通知，最新在前
func (s *NotificationService) List(userID uint, unreadOnly bool) ([]db.Notification, error) {
	query := s.db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var notifications []db.Notification
	if err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead 将单条通知标记为已读
func (s *NotificationService) MarkRead(userID, id uint) error {
	now := s.now()
	result := s.db.Model(&db.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", now)
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead 将用户的全部未读通知标记为已读
func (s *NotificationService) MarkAllRead(userID uint) error {
	now := s.now()
	if err := s.db.Model(&db.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now).Error; err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// ObserveToggle 观察一次打卡结果并按需生成通知
// 只在完成动作上做文章：连胜达到 7 的倍数提示里程碑，
// 周习惯完成当周时提示一次
func (s *NotificationService) ObserveToggle(userID uint, outcome *ToggleOutcome) error {
	if outcome == nil || !outcome.Completed {
		return nil
	}

	habit := outcome.Habit

	if outcome.CurrentStreak > 0 && outcome.CurrentStreak%streakMilestoneStep == 0 {
		unit := "天"
		if habit.Cadence == "weekly" {
			unit = "周"
		}
		_, err := s.create(userID, db.Notification{
			Kind:      db.NotificationKindStreak,
			Title:     "连胜里程碑",
			Body:      fmt.Sprintf("「%s」已连续坚持 %d %s，继续保持！", habit.Name, outcome.CurrentStreak, unit),
			DedupeKey: fmt.Sprintf("streak:%d:%d", habit.ID, outcome.CurrentStreak),
		}, map[string]any{"habit_id": habit.ID, "streak": outcome.CurrentStreak})
		if err != nil {
			return err
		}
	}

	if habit.Cadence == "weekly" {
		_, err := s.create(userID, db.Notification{
			Kind:      db.NotificationKindWeekDone,
			Title:     "本周目标达成",
			Body:      fmt.Sprintf("「%s」本周已完成。", habit.Name),
			DedupeKey: fmt.Sprintf("week:%d:%s", habit.ID, outcome.Date),
		}, map[string]any{"habit_id": habit.ID, "date": outcome.Date})
		if err != nil {
			return err
		}
	}

	return nil
}

// CreateReminder 为未完成的习惯生成当日提醒，按天幂等
// 返回是否真正生成了新通知，供调用方决定要不要再发提醒邮件
func (s *NotificationService) CreateReminder(userID uint, habit *db.Habit, today string) (bool, error) {
	return s.create(userID, db.Notification{
		Kind:      db.NotificationKindReminder,
		Title:     "打卡提醒",
		Body:      fmt.Sprintf("别忘了今天的「%s」。", habit.Name),
		DedupeKey: fmt.Sprintf("reminder:%d:%s", habit.ID, today),
	}, map[string]any{"habit_id": habit.ID, "date": today})
}

func (s *NotificationService) create(userID uint, notification db.Notification, payload map[string]any) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode notification payload: %w", err)
	}

	notification.UserID = userID
	notification.Payload = datatypes.JSON(raw)

	// 依据 DedupeKey 幂等：同一事件只生成一条
	var existing int64
	if err := s.db.Model(&db.Notification{}).
		Where("user_id = ? AND dedupe_key = ?", userID, notification.DedupeKey).
		Count(&existing).Error; err != nil {
		return false, fmt.Errorf("check notification dedupe: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	if err := s.db.Create(&notification).Error; err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	return true, nil
}
