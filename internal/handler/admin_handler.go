package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"golang.org/x/crypto/bcrypt"
)

// AdminLogin 处理目录后台的管理员登录
func (a *API) AdminLogin(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	// 查找管理员
	var admin db.AdminUser
	if err := a.db.Where("username = ?", payload.Username).First(&admin).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set("admin_id", admin.ID)
	session.Set("admin_username", admin.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": admin.Username})
}

// AdminLogout 处理管理员登出
func (a *API) AdminLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// AdminStats 返回后台概览计数
func (a *API) AdminStats(c *gin.Context) {
	var userCount, habitCount, catalogCount int64
	a.db.Model(&db.User{}).Count(&userCount)
	a.db.Model(&db.Habit{}).Count(&habitCount)
	a.db.Model(&db.MasterHabit{}).Count(&catalogCount)

	c.JSON(http.StatusOK, gin.H{
		"users":           userCount,
		"habits":          habitCount,
		"catalog_entries": catalogCount,
	})
}

// AdminRequired 是目录后台的会话认证中间件
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		adminID := session.Get("admin_id")
		if adminID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录后台")
			c.Abort()
			return
		}
		c.Next()
	}
}
