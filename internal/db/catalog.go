package db

import "gorm.io/gorm"

// MasterHabit 定义了精选习惯目录条目
// Slug 唯一，供客户端领取时引用；Description 为 Markdown 原文，
// 渲染与消毒在 handler 层完成
// Status 使用 active/inactive 控制是否对用户可见
type MasterHabit struct {
	gorm.Model
	Name           string
	Slug           string `gorm:"unique;not null"`
	Description    string
	TypeTag        string
	DefaultCadence string
	Icon           string
	SortOrder      int
	Status         string
}
