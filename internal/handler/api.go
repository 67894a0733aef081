package handler

import (
	"time"

	"github.com/habityfy/internal/mailer"
	"github.com/habityfy/internal/service"
	"github.com/habityfy/internal/streak"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db            *gorm.DB
	auth          *service.AuthService
	habits        *service.HabitService
	catalog       *service.CatalogService
	notifications *service.NotificationService
	clock         streak.Clock
}

// Options carries the knobs NewAPI needs beyond the database handle.
type Options struct {
	JWTSecret string
	OTPTTL    time.Duration
	Clock     streak.Clock
	Mailer    mailer.Mailer
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	m := opts.Mailer
	if m == nil {
		m = mailer.NewLogMailer()
	}

	return &API{
		db:            gdb,
		auth:          service.NewAuthService(gdb, m, opts.JWTSecret, opts.OTPTTL),
		habits:        service.NewHabitService(gdb, opts.Clock),
		catalog:       service.NewCatalogService(gdb),
		notifications: service.NewNotificationService(gdb),
		clock:         opts.Clock,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
