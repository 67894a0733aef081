package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 会话仅用于目录后台，用户 API 走 Bearer 令牌
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("habityfy_admin_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		auth := apiGroup.Group("/auth")
		{
			auth.POST("/otp/request", api.RequestOTP)
			auth.POST("/otp/verify", api.VerifyOTP)
		}

		// 公开的精选目录
		apiGroup.GET("/catalog", api.ListCatalog)
		apiGroup.GET("/catalog/:slug", api.GetCatalogEntry)

		// 需要登录的用户路由
		user := apiGroup.Group("")
		user.Use(api.TokenRequired())
		{
			user.GET("/me", api.GetMe)
			user.PUT("/me", api.UpdateMe)

			user.GET("/habits", api.ListHabits)
			user.POST("/habits", api.CreateHabit)
			user.POST("/habits/adopt", api.AdoptHabit)
			user.GET("/habits/:id", api.GetHabit)
			user.PUT("/habits/:id", api.UpdateHabit)
			user.POST("/habits/:id/active", api.SetHabitActive)
			user.DELETE("/habits/:id", api.DeleteHabit)
			user.POST("/habits/:id/toggle", api.ToggleHabit)
			user.GET("/habits/:id/calendar", api.GetHabitCalendar)

			user.GET("/notifications", api.ListNotifications)
			user.POST("/notifications/:id/read", api.MarkNotificationRead)
			user.POST("/notifications/read-all", api.MarkAllNotificationsRead)
		}
	}

	// 目录后台路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.AdminLogin)
		admin.GET("/logout", api.AdminLogout)

		// 需要认证的后台路由
		auth := admin.Group("/api")
		auth.Use(handler.AdminRequired())
		{
			auth.GET("/stats", api.AdminStats)
			auth.GET("/catalog", api.AdminListCatalog)
			auth.POST("/catalog", api.AdminCreateCatalogEntry)
			auth.PUT("/catalog/:id", api.AdminUpdateCatalogEntry)
			auth.DELETE("/catalog/:id", api.AdminDeleteCatalogEntry)
		}
	}

	return r
}
