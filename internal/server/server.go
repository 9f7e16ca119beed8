// Package server assembles the HTTP and websocket surface of the API.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/config"
	"github.com/skilllink/skilllink-api/internal/handlers"
	"github.com/skilllink/skilllink-api/internal/middleware"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/repository"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/mailer"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/services/rating"
	"github.com/skilllink/skilllink-api/internal/services/requests"
	"github.com/skilllink/skilllink-api/internal/services/storage"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const authWindow = 15 * time.Minute

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Messages repository.MessageRepository
	// Hub serves /ws. When nil the websocket route is not mounted and
	// Emitter must be set.
	Hub      *realtime.Hub
	Presence *realtime.Presence
	Emitter  realtime.Emitter
	Mailer   mailer.Sender
	Events   events.Publisher
	Store    storage.Store
	Log      *zap.Logger
}

// Services are the domain services behind the routes, exposed for the
// process wiring and for tests.
type Services struct {
	Notify   *notify.NotifyService
	Requests *requests.RequestService
	Ratings  *rating.RatingService
}

// New builds the app. Background helpers stop when ctx is done.
func New(ctx context.Context, d Deps) (*fiber.App, *Services) {
	cfg := d.Config
	emitter := d.Emitter
	if emitter == nil {
		emitter = d.Hub
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Store == nil {
		d.Store = storage.NewLocalStore(cfg.App.UploadDir, cfg.App.BaseURL)
	}

	svc := &Services{}
	svc.Notify = notify.NewNotifyService(d.DB, emitter, d.Mailer, d.Log)
	svc.Requests = requests.NewRequestService(d.DB, emitter, svc.Notify, d.Events, d.Log)
	svc.Ratings = rating.NewRatingService(d.DB, svc.Notify, d.Events, d.Log)

	app := fiber.New(fiber.Config{
		AppName:      "skilllink-api",
		ErrorHandler: utils.ErrorHandler(d.Log),
		BodyLimit:    5 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(d.Log))
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: cfg.App.CORSOrigins != "*",
	}))
	app.Static("/uploads", cfg.App.UploadDir)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "SkillLink API is running",
			"time":    time.Now().UTC(),
		})
	})

	base := []fiber.Handler{
		middleware.JWTAuth(cfg.JWT.Secret),
		middleware.AttachJWTLocals(),
		middleware.EnsurePrincipal(d.DB),
	}
	g := handlers.Guards{
		Any:    base,
		User:   handlers.With(base, middleware.RequireRoles("user")),
		Worker: handlers.With(base, middleware.RequireRoles("worker")),
	}

	authH := &handlers.AuthHandler{
		DB:        d.DB,
		JWTSecret: cfg.JWT.Secret,
		Expires:   cfg.JWT.ExpiresMin,
		Log:       d.Log,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              d.DB,
		JWTSecret:       cfg.JWT.Secret,
		Expires:         cfg.JWT.ExpiresMin,
		GoogleClientID:  cfg.Google.ClientID,
		GoogleSecret:    cfg.Google.ClientSecret,
		GoogleRedirect:  cfg.Google.RedirectURL,
		FrontendBaseURL: cfg.App.FrontendURL,
		Log:             d.Log,
	}
	workerH := handlers.NewWorkerHandler(d.DB, d.Store, d.Log)

	limiter := middleware.NewIPRateLimiter(cfg.App.AuthRateLimit, authWindow, d.Log)
	limiter.StartCleanup(ctx.Done())

	api := app.Group("/api")

	auth := api.Group("/auth", limiter.Handler())
	auth.Post("/user/signup", authH.SignupUser)
	auth.Post("/user/login", authH.LoginUser)
	auth.Get("/user/google/start", googleH.GoogleStart)
	auth.Get("/user/google/callback", googleH.GoogleCallback)
	auth.Get("/user/me", handlers.With(g.User, authH.Me)...)
	auth.Put("/user/update-profile", handlers.With(g.User, authH.UpdateUserProfile)...)
	auth.Post("/worker/signup", authH.SignupWorker)
	auth.Post("/worker/login", authH.LoginWorker)
	auth.Get("/worker/me", handlers.With(g.Worker, workerH.Me)...)
	auth.Post("/logout", authH.Logout)

	api.Get("/categories", handlers.NewCategoryHandler(d.DB).GetCategories)
	workerH.Routes(api, g)
	handlers.NewServiceHandler(d.DB, svc.Notify, d.Events, d.Log).Routes(api, g)
	handlers.NewRequestHandler(svc.Requests).Routes(api, g)
	handlers.NewReviewHandler(svc.Ratings).Routes(api, g)
	handlers.NewNotificationHandler(d.DB).Routes(api, g)
	handlers.NewMapHandler(d.DB).Routes(api)
	handlers.NewDashboardHandler(d.DB, d.Messages, d.Log).Routes(api, g)

	msgH := handlers.NewMessageHandler(d.DB, d.Messages, emitter, nil, svc.Notify, d.Log)
	if d.Hub != nil {
		msgH.Online = d.Hub
		wsH := handlers.NewWSHandler(d.DB, d.Hub, d.Presence, cfg.JWT.Secret, d.Log)
		app.Use("/ws", wsH.Upgrade)
		app.Get("/ws", websocket.New(wsH.Serve))
	}
	msgH.Routes(api, g)

	return app, svc
}
