package db

import (
	"time"

	"gorm.io/gorm"
)

// Habit 定义了用户习惯模型
// Cadence 支持 daily/weekly/custom，custom 在连胜计算上等同 daily
// MasterHabitID 指向来源的目录条目，自建习惯时为空
// CurrentStreak/MaxStreak 为派生值，每次打卡变更后由引擎重算写回，
// 事实来源始终是 completion_entries 里的历史
// ReminderTime 形如 "08:30"，为空表示不提醒
type Habit struct {
	gorm.Model
	UserID        uint `gorm:"index"`
	User          User `gorm:"constraint:OnDelete:CASCADE"`
	MasterHabitID *uint
	Name          string
	Description   string
	Cadence       string
	TypeTag       string
	IsActive      bool `gorm:"default:true"`
	ReminderTime  string
	CurrentStreak int
	MaxStreak     int
	History       []CompletionEntry `gorm:"constraint:OnDelete:CASCADE"`
}

// CompletionEntry 记录习惯某一天的完成状态
// LogDate 为 YYYY-MM-DD 字符串，字典序即时间序
// habit_id + log_date 仅做普通联合索引：同日唯一由查找-再-变更的
// 流程保证，历史脏数据以先出现的记录为准，引擎侧做了防御
type CompletionEntry struct {
	gorm.Model
	HabitID     uint   `gorm:"index;index:idx_completion_habit_date"`
	LogDate     string `gorm:"index:idx_completion_habit_date"`
	Completed   bool
	CompletedAt *time.Time
}

// TableName 保持与旧版 API 对外语义一致的表名
func (CompletionEntry) TableName() string {
	return "completion_entries"
}
