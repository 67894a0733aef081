package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/service"
)

const currentUserKey = "__current_user_id"

// RequestOTP 向邮箱发送登录验证码
func (a *API) RequestOTP(c *gin.Context) {
	var payload struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.auth.RequestOTP(payload.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailInvalid):
			respondError(c, http.StatusBadRequest, "邮箱格式不正确")
		case errors.Is(err, service.ErrOTPThrottled):
			respondError(c, http.StatusTooManyRequests, "验证码请求过于频繁，请稍后再试")
		default:
			respondError(c, http.StatusInternalServerError, "发送验证码失败")
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// VerifyOTP 校验验证码并签发访问令牌
func (a *API) VerifyOTP(c *gin.Context) {
	var payload struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	token, user, err := a.auth.VerifyOTP(payload.Email, payload.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailInvalid):
			respondError(c, http.StatusBadRequest, "邮箱格式不正确")
		case errors.Is(err, service.ErrOTPExpired):
			respondError(c, http.StatusUnauthorized, "验证码已过期")
		case errors.Is(err, service.ErrOTPInvalid):
			respondError(c, http.StatusUnauthorized, "验证码不正确")
		default:
			respondError(c, http.StatusInternalServerError, "登录失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userToPayload(user),
	})
}

// GetMe 返回当前登录用户
func (a *API) GetMe(c *gin.Context) {
	userID := CurrentUserID(c)

	var user db.User
	if err := a.db.First(&user, userID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "获取用户信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(&user)})
}

// UpdateMe 更新当前用户的昵称与时区
func (a *API) UpdateMe(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if tz := strings.TrimSpace(payload.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			respondError(c, http.StatusBadRequest, "无效的时区")
			return
		}
	}

	var user db.User
	if err := a.db.First(&user, userID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "获取用户信息失败")
		return
	}

	user.Name = strings.TrimSpace(payload.Name)
	user.Timezone = strings.TrimSpace(payload.Timezone)
	if err := a.db.Save(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "保存用户信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(&user)})
}

// TokenRequired 校验 Bearer 访问令牌的认证中间件
func (a *API) TokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(c, http.StatusUnauthorized, "未登录")
			c.Abort()
			return
		}

		userID, err := a.auth.ParseToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "登录状态已失效")
			c.Abort()
			return
		}

		c.Set(currentUserKey, userID)
		c.Next()
	}
}

// CurrentUserID 读取中间件写入的用户 ID
func CurrentUserID(c *gin.Context) uint {
	if value, exists := c.Get(currentUserKey); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}

func userToPayload(user *db.User) gin.H {
	payload := gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"name":     user.Name,
		"timezone": user.Timezone,
	}
	if user.LastLoginAt != nil {
		payload["last_login_at"] = user.LastLoginAt.Format(time.RFC3339)
	}
	return payload
}
