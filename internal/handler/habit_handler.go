package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/logger"
	"github.com/habityfy/internal/service"
	"github.com/habityfy/internal/streak"
)

const defaultCalendarView = "monthly"

type habitPayload struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Cadence      string `json:"cadence"`
	TypeTag      string `json:"type_tag"`
	ReminderTime string `json:"reminder_time"`
}

// ListHabits 返回当前用户的习惯列表
func (a *API) ListHabits(c *gin.Context) {
	userID := CurrentUserID(c)

	filter := service.HabitFilter{
		ActiveOnly: c.DefaultQuery("status", "active") != "all",
		Cadence:    c.Query("cadence"),
		TypeTag:    c.Query("type_tag"),
	}

	habits, err := a.habits.List(userID, filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	today := a.clock.TodayString()
	items := make([]gin.H, 0, len(habits))
	for i := range habits {
		item := habitToPayload(&habits[i])
		if status, err := a.habits.StatusOn(userID, habits[i].ID, today); err == nil {
			item["completed"] = status.Completed
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"habits": items, "date": today})
}

// CreateHabit 新建自定义习惯
func (a *API) CreateHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Create(userID, habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(habit)})
}

// AdoptHabit 从精选目录领取习惯
func (a *API) AdoptHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	var payload struct {
		Slug         string `json:"slug"`
		Name         string `json:"name"`
		Cadence      string `json:"cadence"`
		ReminderTime string `json:"reminder_time"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if strings.TrimSpace(payload.Slug) == "" {
		respondError(c, http.StatusBadRequest, "请选择目录条目")
		return
	}

	habit, err := a.habits.AdoptFromCatalog(userID, payload.Slug, service.HabitInput{
		Name:         payload.Name,
		Cadence:      payload.Cadence,
		ReminderTime: payload.ReminderTime,
	})
	if err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			respondError(c, http.StatusNotFound, "目录条目不存在")
			return
		}
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(habit)})
}

// GetHabit 返回单个习惯详情及当日（当周）完成状态
func (a *API) GetHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(userID, id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	today := a.clock.TodayString()
	item := habitToPayload(habit)
	if status, err := a.habits.StatusOn(userID, habit.ID, today); err == nil {
		item["completed"] = status.Completed
		if status.CompletedAt != nil {
			item["completed_at"] = status.CompletedAt.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, gin.H{"habit": item, "date": today})
}

// UpdateHabit 更新习惯基础字段
func (a *API) UpdateHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Update(userID, id, habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(habit)})
}

// SetHabitActive 启用/停用习惯，历史保留
func (a *API) SetHabitActive(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload struct {
		Active *bool `json:"active"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if payload.Active == nil {
		respondError(c, http.StatusBadRequest, "缺少 active 参数")
		return
	}

	habit, err := a.habits.SetActive(userID, id, *payload.Active)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(habit)})
}

// DeleteHabit 删除习惯及其历史
func (a *API) DeleteHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if err := a.habits.Delete(userID, id); err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ToggleHabit 切换某天的完成状态并返回最新连胜
func (a *API) ToggleHabit(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload struct {
		Date string `json:"date"`
	}
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	outcome, err := a.habits.Toggle(userID, id, payload.Date)
	if err != nil {
		if errors.Is(err, streak.ErrInvalidDate) {
			respondError(c, http.StatusBadRequest, "无效的打卡日期")
			return
		}
		handleHabitError(c, err)
		return
	}

	// 通知属于打卡之外的副作用，失败不影响本次请求
	if err := a.notifications.ObserveToggle(userID, outcome); err != nil {
		logger.L().Warn("observe toggle failed", "habit", id, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"habit":          habitToPayload(outcome.Habit),
		"date":           outcome.Date,
		"completed":      outcome.Completed,
		"week_cleared":   outcome.WeekCleared,
		"current_streak": outcome.CurrentStreak,
		"max_streak":     outcome.MaxStreak,
	})
}

// GetHabitCalendar 返回日期区间内的打卡数据
func (a *API) GetHabitCalendar(c *gin.Context) {
	userID := CurrentUserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(userID, id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	view := c.DefaultQuery("view", defaultCalendarView)
	start, end := a.resolveRange(c.Query("start"), view)

	entries, err := a.habits.EntriesBetween(userID, habit.ID, start, end)
	if err != nil {
		if errors.Is(err, streak.ErrInvalidDate) {
			respondError(c, http.StatusBadRequest, "无效的日期区间")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"habit":   habitToPayload(habit),
		"entries": serializeEntries(entries),
		"range":   gin.H{"start": start, "end": end, "view": view},
	})
}

// resolveRange 把 start+view 解析为闭区间，start 非法或缺省时取今天
func (a *API) resolveRange(startStr, view string) (string, string) {
	start := a.clock.Today()
	if startStr != "" {
		if parsed, err := streak.ParseDate(startStr); err == nil {
			start = parsed
		}
	}

	switch strings.ToLower(view) {
	case "weekly":
		weekStart := streak.WeekStart(start)
		return streak.FormatDate(weekStart), streak.FormatDate(weekStart.AddDate(0, 0, 6))
	default:
		monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		return streak.FormatDate(monthStart), streak.FormatDate(monthStart.AddDate(0, 1, -1))
	}
}

func habitInputFromPayload(payload habitPayload) service.HabitInput {
	return service.HabitInput{
		Name:         payload.Name,
		Description:  payload.Description,
		Cadence:      payload.Cadence,
		TypeTag:      payload.TypeTag,
		ReminderTime: payload.ReminderTime,
	}
}

func habitToPayload(habit *db.Habit) gin.H {
	item := gin.H{
		"id":             habit.ID,
		"name":           habit.Name,
		"description":    habit.Description,
		"cadence":        habit.Cadence,
		"type_tag":       habit.TypeTag,
		"is_active":      habit.IsActive,
		"reminder_time":  habit.ReminderTime,
		"current_streak": habit.CurrentStreak,
		"max_streak":     habit.MaxStreak,
	}
	if habit.MasterHabitID != nil {
		item["master_habit_id"] = *habit.MasterHabitID
	}
	return item
}

func serializeEntries(entries []db.CompletionEntry) []gin.H {
	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		item := gin.H{
			"date":      entry.LogDate,
			"completed": entry.Completed,
		}
		if entry.CompletedAt != nil {
			item["completed_at"] = entry.CompletedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitInvalidCadence):
		respondError(c, http.StatusBadRequest, "频率配置无效")
	case errors.Is(err, streak.ErrInvalidDate):
		respondError(c, http.StatusBadRequest, "无效的日期")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
