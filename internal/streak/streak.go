// Package streak 实现习惯打卡历史的完成切换与连胜推导。
// 引擎本身是纯计算：不做任何 I/O，持久化与权限判断由调用方负责。
package streak

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout 是打卡日期的统一格式。
// YYYY-MM-DD 字符串的字典序与时间序一致，存储层可以直接按字符串比较。
const DateLayout = "2006-01-02"

// Cadence 表示习惯的打卡频率。
// custom 目前没有独立的连胜逻辑，按 daily 处理。
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
	CadenceCustom Cadence = "custom"
)

const (
	// maxDailyWalk 限制向前回溯的天数，连胜不会跨越该窗口。
	maxDailyWalk = 365
	// maxWeeklyWalk 限制向前回溯的周数。
	maxWeeklyWalk = 52
)

// ErrInvalidDate 在目标日期无法解析时返回，引擎不会改动任何历史。
var ErrInvalidDate = errors.New("invalid completion date")

// Entry 表示某一天的打卡记录。
// 同一天至多保留一条，由查找-再-变更的流程维护，而非唯一约束；
// 历史数据若出现重复日期，以先出现的记录为准。
type Entry struct {
	Date        string
	Completed   bool
	CompletedAt *time.Time
}

// Status 是只读状态查询的结果。
type Status struct {
	Completed   bool
	CompletedAt *time.Time
}

// Result 汇总一次切换的产物。
// ChangedDate 指向被翻转或新建的记录；RemovedDates 仅在周习惯
// “取消整周”时非空，两者不会同时出现。
type Result struct {
	Entries       []Entry
	Completed     bool
	ChangedDate   string
	RemovedDates  []string
	CurrentStreak int
	MaxStreak     int
}

// ParseDate 把 YYYY-MM-DD 解析为 UTC 零点的日期值。
func ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, value)
	}
	return day, nil
}

// FormatDate 把日期值还原为 YYYY-MM-DD。
func FormatDate(day time.Time) string {
	return day.Format(DateLayout)
}

// WeekStart 返回包含 day 的 ISO 周（周一起始）的第一天。
func WeekStart(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// Toggle 翻转 targetDate 的完成状态并同步重算连胜。
// targetDate 为空时取时钟的“今天”。传入的 entries 不会被原地修改。
func Toggle(entries []Entry, cadence Cadence, targetDate string, clk Clock) (Result, error) {
	if targetDate == "" {
		targetDate = clk.TodayString()
	}
	target, err := ParseDate(targetDate)
	if err != nil {
		return Result{}, err
	}

	if cadence == CadenceWeekly {
		return toggleWeekly(entries, target, clk), nil
	}
	return toggleDaily(entries, target, clk), nil
}

func toggleDaily(entries []Entry, target time.Time, clk Clock) Result {
	targetDate := FormatDate(target)
	next := make([]Entry, len(entries))
	copy(next, entries)

	result := Result{ChangedDate: targetDate}

	idx := indexOfDate(next, targetDate)
	if idx >= 0 {
		next[idx].Completed = !next[idx].Completed
		if next[idx].Completed {
			now := clk.Now()
			next[idx].CompletedAt = &now
		} else {
			next[idx].CompletedAt = nil
		}
		result.Completed = next[idx].Completed
	} else {
		now := clk.Now()
		next = append(next, Entry{Date: targetDate, Completed: true, CompletedAt: &now})
		result.Completed = true
	}

	result.Entries = next
	result.CurrentStreak, result.MaxStreak = Recompute(next, CadenceDaily, clk)
	return result
}

func toggleWeekly(entries []Entry, target time.Time, clk Clock) Result {
	weekStart := WeekStart(target)
	result := Result{}

	if weekCompleted(entries, weekStart) {
		// 整周取消：该周内所有记录一并移除，而不是翻转标记。
		kept := make([]Entry, 0, len(entries))
		for _, entry := range entries {
			day, err := ParseDate(entry.Date)
			if err == nil && inWeek(day, weekStart) {
				result.RemovedDates = append(result.RemovedDates, entry.Date)
				continue
			}
			kept = append(kept, entry)
		}
		result.Entries = kept
		result.Completed = false
	} else {
		next := make([]Entry, len(entries))
		copy(next, entries)

		targetDate := FormatDate(target)
		now := clk.Now()
		if idx := indexOfDate(next, targetDate); idx >= 0 {
			next[idx].Completed = true
			next[idx].CompletedAt = &now
		} else {
			next = append(next, Entry{Date: targetDate, Completed: true, CompletedAt: &now})
		}
		result.Entries = next
		result.Completed = true
		result.ChangedDate = targetDate
	}

	result.CurrentStreak, result.MaxStreak = Recompute(result.Entries, CadenceWeekly, clk)
	return result
}

// Recompute 仅依据 entries 推导当前连胜与历史最长连胜。
// 两个计数始终可以由历史重放得出，不存在独立的事实来源。
func Recompute(entries []Entry, cadence Cadence, clk Clock) (current, longest int) {
	if cadence == CadenceWeekly {
		return weeklyStreaks(entries, clk)
	}
	return dailyStreaks(entries, clk)
}

// StatusOn 返回 date 当天（周习惯则为所在周）的完成状态。
// 查询只读，不触发重算。
func StatusOn(entries []Entry, cadence Cadence, date string) (Status, error) {
	day, err := ParseDate(date)
	if err != nil {
		return Status{}, err
	}

	if cadence == CadenceWeekly {
		weekStart := WeekStart(day)
		for _, entry := range entries {
			entryDay, err := ParseDate(entry.Date)
			if err != nil || !entry.Completed {
				continue
			}
			if inWeek(entryDay, weekStart) {
				return Status{Completed: true, CompletedAt: entry.CompletedAt}, nil
			}
		}
		return Status{}, nil
	}

	if idx := indexOfDate(entries, FormatDate(day)); idx >= 0 {
		return Status{Completed: entries[idx].Completed, CompletedAt: entries[idx].CompletedAt}, nil
	}
	return Status{}, nil
}

func dailyStreaks(entries []Entry, clk Clock) (current, longest int) {
	completed := completedDateSet(entries)
	if len(completed) == 0 {
		return 0, 0
	}

	// 当前连胜：从今天起逐日回溯，遇到缺口即停。
	day := clk.Today()
	for i := 0; i < maxDailyWalk; i++ {
		if !completed[FormatDate(day)] {
			break
		}
		current++
		day = day.AddDate(0, 0, -1)
	}

	days := make([]time.Time, 0, len(completed))
	for date := range completed {
		parsed, err := ParseDate(date)
		if err != nil {
			continue
		}
		days = append(days, parsed)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest = 1
	run := 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i-1], days[i]) == 1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return current, longest
}

func weeklyStreaks(entries []Entry, clk Clock) (current, longest int) {
	weekSet := completedWeekSet(entries)
	if len(weekSet) == 0 {
		return 0, 0
	}

	// 当前连胜：从本周起按周回溯。
	week := WeekStart(clk.Today())
	for i := 0; i < maxWeeklyWalk; i++ {
		if !weekSet[FormatDate(week)] {
			break
		}
		current++
		week = week.AddDate(0, 0, -7)
	}

	weeks := make([]time.Time, 0, len(weekSet))
	for date := range weekSet {
		parsed, err := ParseDate(date)
		if err != nil {
			continue
		}
		weeks = append(weeks, parsed)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	longest = 1
	run := 1
	for i := 1; i < len(weeks); i++ {
		if daysBetween(weeks[i-1], weeks[i]) == 7 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return current, longest
}

// indexOfDate 返回首个匹配日期的下标，重复日期以先出现者为准。
func indexOfDate(entries []Entry, date string) int {
	for i, entry := range entries {
		if entry.Date == date {
			return i
		}
	}
	return -1
}

// completedDateSet 收集所有已完成日期，重复日期只认首条记录。
func completedDateSet(entries []Entry) map[string]bool {
	seen := make(map[string]bool, len(entries))
	completed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if seen[entry.Date] {
			continue
		}
		seen[entry.Date] = true
		if entry.Completed {
			completed[entry.Date] = true
		}
	}
	return completed
}

func completedWeekSet(entries []Entry) map[string]bool {
	weeks := make(map[string]bool)
	for _, entry := range entries {
		if !entry.Completed {
			continue
		}
		day, err := ParseDate(entry.Date)
		if err != nil {
			continue
		}
		weeks[FormatDate(WeekStart(day))] = true
	}
	return weeks
}

func weekCompleted(entries []Entry, weekStart time.Time) bool {
	for _, entry := range entries {
		if !entry.Completed {
			continue
		}
		day, err := ParseDate(entry.Date)
		if err != nil {
			continue
		}
		if inWeek(day, weekStart) {
			return true
		}
	}
	return false
}

func inWeek(day, weekStart time.Time) bool {
	return !day.Before(weekStart) && !day.After(weekStart.AddDate(0, 0, 6))
}

// daysBetween 返回整日差值。日期值统一落在 UTC 零点，减法不受 DST 干扰。
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
