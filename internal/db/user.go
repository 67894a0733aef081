package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了终端用户模型
// 账号通过邮箱 OTP 验证后自动创建，无密码字段
// Timezone 为 IANA 时区名，为空时沿用服务端日界策略
type User struct {
	gorm.Model
	Email       string `gorm:"unique;not null"`
	Name        string
	Timezone    string
	LastLoginAt *time.Time
}

// AdminUser 定义了习惯目录后台的管理员账号
type AdminUser struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// EnsureAdminUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
func EnsureAdminUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing AdminUser
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&AdminUser{Username: trimmedUser, Password: string(hashed)}).Error
	}

	return nil
}
