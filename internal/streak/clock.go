package streak

import "time"

// Clock 为引擎提供统一的“现在”与“今天”。
// Location 显式声明日界策略：按哪个时区把时间截断到天。
// 默认 UTC，与旧版后端 toISOString 截断的行为一致；
// 通过 TIMEZONE 配置可切换为用户所在时区。
type Clock struct {
	NowFunc  func() time.Time
	Location *time.Location
}

// SystemClock 返回跟随系统时间的时钟。
func SystemClock(loc *time.Location) Clock {
	return Clock{NowFunc: time.Now, Location: loc}
}

// FixedClock 返回固定时间的时钟，供测试使用。
func FixedClock(at time.Time, loc *time.Location) Clock {
	return Clock{NowFunc: func() time.Time { return at }, Location: loc}
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Now 返回当前时间戳。
func (c Clock) Now() time.Time {
	if c.NowFunc == nil {
		return time.Now()
	}
	return c.NowFunc()
}

// Today 返回日界策略下的“今天”。
// 结果统一表示为 UTC 零点的日期值，后续日期运算不受 DST 影响。
func (c Clock) Today() time.Time {
	now := c.Now().In(c.location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayString 返回 YYYY-MM-DD 形式的“今天”。
func (c Clock) TodayString() string {
	return c.Today().Format(DateLayout)
}
