package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/logger"
	"github.com/habityfy/internal/mailer"
	"github.com/habityfy/internal/streak"
	"gorm.io/gorm"
)

// ReminderService 周期扫描配置了提醒时间的习惯
// 当前分钟命中且当天（当周）还未完成的习惯会收到站内通知与提醒邮件
// 扫描与通知创建都按天幂等，重复扫描同一分钟不会重复打扰

type ReminderService struct {
	db            *gorm.DB
	habits        *HabitService
	notifications *NotificationService
	mailer        mailer.Mailer
	clock         streak.Clock
}

// NewReminderService 构造 ReminderService
func NewReminderService(gdb *gorm.DB, habits *HabitService, notifications *NotificationService, m mailer.Mailer, clock streak.Clock) *ReminderService {
	return &ReminderService{db: gdb, habits: habits, notifications: notifications, mailer: m, clock: clock}
}

// Run 以分钟为粒度驱动扫描，直到 ctx 取消
func (s *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(); err != nil {
				logger.L().Error("reminder scan failed", "err", err)
			}
		}
	}
}

// Scan 执行一轮提醒扫描，返回发出的提醒数量
func (s *ReminderService) Scan() (int, error) {
	now := s.clock.Now().In(s.clockLocation())
	minute := now.Format("15:04")
	today := s.clock.TodayString()

	var habits []db.Habit
	if err := s.db.Where("is_active = ? AND reminder_time = ?", true, minute).Find(&habits).Error; err != nil {
		return 0, fmt.Errorf("find habits due for reminder: %w", err)
	}

	sent := 0
	for i := range habits {
		habit := &habits[i]

		status, err := s.habits.StatusOn(habit.UserID, habit.ID, today)
		if err != nil {
			if errors.Is(err, ErrHabitNotFound) {
				continue
			}
			logger.L().Warn("reminder status check failed", "habit", habit.ID, "err", err)
			continue
		}
		if status.Completed {
			continue
		}

		created, err := s.notifications.CreateReminder(habit.UserID, habit, today)
		if err != nil {
			logger.L().Warn("reminder notification failed", "habit", habit.ID, "err", err)
			continue
		}
		if !created {
			// 当天已经提醒过
			continue
		}

		var user db.User
		if err := s.db.First(&user, habit.UserID).Error; err == nil {
			body := fmt.Sprintf("别忘了今天的「%s」。", habit.Name)
			if err := s.mailer.Send(user.Email, "HabityFy 打卡提醒", body); err != nil {
				logger.L().Warn("reminder mail failed", "habit", habit.ID, "err", err)
			}
		}

		sent++
	}

	return sent, nil
}

func (s *ReminderService) clockLocation() *time.Location {
	if s.clock.Location == nil {
		return time.UTC
	}
	return s.clock.Location
}
