package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 通知类型
const (
	NotificationKindStreak   = "streak_milestone"
	NotificationKindWeekDone = "week_completed"
	NotificationKindReminder = "reminder"
)

// Notification 定义了站内通知
// Payload 存放与类型相关的附加数据（习惯 ID、连胜数等），
// 客户端按 Kind 解释；ReadAt 非空表示已读
// DedupeKey 用于幂等创建：同一事件重复观察不会产生第二条通知
type Notification struct {
	gorm.Model
	UserID    uint `gorm:"index"`
	Kind      string
	Title     string
	Body      string
	Payload   datatypes.JSON
	DedupeKey string `gorm:"index"`
	ReadAt    *time.Time
}
