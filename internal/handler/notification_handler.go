package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/service"
)

// ListNotifications 返回当前用户的通知
func (a *API) ListNotifications(c *gin.Context) {
	userID := CurrentUserID(c)

	notifications, err := a.notifications.List(userID, c.Query("unread") == "1")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取通知失败")
		return
	}

	items := make([]gin.H, 0, len(notifications))
	for i := range notifications {
		items = append(items, notificationToPayload(&notifications[i]))
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkNotificationRead 将单条通知标记为已读
func (a *API) MarkNotificationRead(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的通知ID")
		return
	}

	if err := a.notifications.MarkRead(userID, id); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			respondError(c, http.StatusNotFound, "通知不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "标记通知失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// MarkAllNotificationsRead 将全部未读通知标记为已读
func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	userID := CurrentUserID(c)

	if err := a.notifications.MarkAllRead(userID); err != nil {
		respondError(c, http.StatusInternalServerError, "标记通知失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

func notificationToPayload(notification *db.Notification) gin.H {
	item := gin.H{
		"id":         notification.ID,
		"kind":       notification.Kind,
		"title":      notification.Title,
		"body":       notification.Body,
		"created_at": notification.CreatedAt.Format(time.RFC3339),
		"read":       notification.ReadAt != nil,
	}

	if len(notification.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(notification.Payload, &payload); err == nil {
			item["payload"] = payload
		}
	}

	return item
}
