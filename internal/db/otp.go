package db

import (
	"time"

	"gorm.io/gorm"
)

// EmailOTP 记录一次邮箱验证码的签发
// 验证码本身不落库，只保存 bcrypt 哈希；Attempts 统计失败次数，
// ConsumedAt 非空表示已被使用
type EmailOTP struct {
	gorm.Model
	Email      string `gorm:"index"`
	CodeHash   string `gorm:"not null"`
	Purpose    string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	Attempts   int
}
