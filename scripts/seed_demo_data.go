package main

import (
	"fmt"
	"log"
	"time"

	"github.com/habityfy/internal/config"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/service"
	"github.com/habityfy/internal/streak"
)

// 演示数据生成器：精选目录 + 带打卡历史的演示用户
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成演示数据...")

	seedCatalog()
	seedDemoUser()

	fmt.Println("演示数据生成完成！")
}

// 创建精选习惯目录
func seedCatalog() {
	var count int64
	db.DB.Model(&db.MasterHabit{}).Count(&count)
	if count > 0 {
		fmt.Println("目录已存在，跳过创建")
		return
	}

	catalog := service.NewCatalogService(db.DB)
	entries := []service.CatalogInput{
		{
			Name:           "晨间饮水",
			Slug:           "morning-water",
			Description:    "起床后先喝 **一杯温水**，唤醒身体代谢。",
			TypeTag:        "健康",
			DefaultCadence: "daily",
			Icon:           "💧",
			SortOrder:      1,
		},
		{
			Name:           "每日冥想",
			Slug:           "daily-meditation",
			Description:    "找一个安静的角落，**静坐 10 分钟**，专注呼吸。",
			TypeTag:        "身心",
			DefaultCadence: "daily",
			Icon:           "🧘",
			SortOrder:      2,
		},
		{
			Name:           "睡前阅读",
			Slug:           "bedtime-reading",
			Description:    "放下手机，读 20 分钟纸质书。",
			TypeTag:        "学习",
			DefaultCadence: "daily",
			Icon:           "📖",
			SortOrder:      3,
		},
		{
			Name:           "每周复盘",
			Slug:           "weekly-review",
			Description:    "每周抽半小时回顾本周的收获与不足，写下下周计划。",
			TypeTag:        "效率",
			DefaultCadence: "weekly",
			Icon:           "📝",
			SortOrder:      4,
		},
		{
			Name:           "周末长跑",
			Slug:           "weekend-long-run",
			Description:    "每周完成一次 5 公里以上的长跑。",
			TypeTag:        "健康",
			DefaultCadence: "weekly",
			Icon:           "🏃",
			SortOrder:      5,
		},
	}

	for _, input := range entries {
		if _, err := catalog.Create(input); err != nil {
			log.Printf("创建目录条目失败 %s: %v", input.Slug, err)
		}
	}

	fmt.Println("✅ 精选目录创建完成")
}

// 创建带打卡历史的演示用户
func seedDemoUser() {
	var count int64
	db.DB.Model(&db.User{}).Where("email = ?", "demo@habityfy.dev").Count(&count)
	if count > 0 {
		fmt.Println("演示用户已存在，跳过创建")
		return
	}

	user := db.User{Email: "demo@habityfy.dev", Name: "演示用户", Timezone: "Asia/Shanghai"}
	if err := db.DB.Create(&user).Error; err != nil {
		log.Fatal("创建演示用户失败:", err)
	}

	clock := streak.SystemClock(time.UTC)
	habits := service.NewHabitService(db.DB, clock)

	daily, err := habits.AdoptFromCatalog(user.ID, "morning-water", service.HabitInput{ReminderTime: "08:00"})
	if err != nil {
		log.Fatal("领取目录习惯失败:", err)
	}
	weekly, err := habits.AdoptFromCatalog(user.ID, "weekly-review", service.HabitInput{})
	if err != nil {
		log.Fatal("领取目录习惯失败:", err)
	}

	// 回填最近一段打卡历史，制造正在进行中的连胜
	today := clock.Today()
	for offset := 0; offset < 10; offset++ {
		date := streak.FormatDate(today.AddDate(0, 0, -offset))
		if _, err := habits.Toggle(user.ID, daily.ID, date); err != nil {
			log.Printf("回填每日打卡失败 %s: %v", date, err)
		}
	}
	for week := 0; week < 3; week++ {
		date := streak.FormatDate(streak.WeekStart(today).AddDate(0, 0, -7*week))
		if _, err := habits.Toggle(user.ID, weekly.ID, date); err != nil {
			log.Printf("回填每周打卡失败 %s: %v", date, err)
		}
	}

	fmt.Println("✅ 演示用户创建完成")
	fmt.Println("邮箱: demo@habityfy.dev（通过验证码登录）")
}
