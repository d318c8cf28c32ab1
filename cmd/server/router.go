package main

import (
	"net/http"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/author"
	"github.com/bikestra/paper-tracker/internal/category"
	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/internal/metrics"
	"github.com/bikestra/paper-tracker/internal/middleware"
	"github.com/bikestra/paper-tracker/internal/paper"
	"github.com/bikestra/paper-tracker/internal/user"
	"github.com/bikestra/paper-tracker/internal/web"
	"github.com/bikestra/paper-tracker/internal/worker"
	"github.com/bikestra/paper-tracker/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type deps struct {
	db       *gorm.DB
	cache    *redis.Cache
	pool     *worker.WorkerPool
	fetcher  arxiv.Fetcher
	password *auth.PasswordChecker
	sessions *auth.Sessions
	config   config.Config
}

type app struct {
	deps
	userHandler     *user.Handler
	paperHandler    *paper.Handler
	categoryHandler *category.Handler
	authorHandler   *author.Handler
	webHandler      *web.Handler
	auth            *middleware.Auth
}

func newApp(d deps) *app {
	// Initialize repository
	userRepo := user.NewRepository(d.db)
	paperRepo := paper.NewRepository(d.db)
	categoryRepo := category.NewRepository(d.db)
	authorRepo := author.NewRepository(d.db)

	// Initialize service
	userService := user.NewService(userRepo, d.password)
	authorService := author.NewService(authorRepo, d.cache)
	categoryService := category.NewService(categoryRepo)
	paperService := paper.NewService(paperRepo, d.fetcher, d.cache, d.pool, authorService, paper.Options{
		CacheTTL:    d.config.MetadataCacheTTL,
		MaxAttempts: d.config.ArxivMaxAttempts,
	})

	// Initialize handler
	return &app{
		deps:            d,
		userHandler:     user.NewHandler(userService, d.sessions, d.config.IsProduction()),
		paperHandler:    paper.NewHandler(paperService),
		categoryHandler: category.NewHandler(categoryService),
		authorHandler:   author.NewHandler(authorService),
		webHandler:      web.NewHandler(paperService, categoryService, userService.PasswordRequired()),
		auth:            &middleware.Auth{Users: userService, Sessions: d.sessions},
	}
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.ErrorHandler())
	router.SetHTMLTemplate(web.Templates())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}
	if a.config.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{a.config.FrontendAddress}
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context(), a.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Session routes
	router.GET("/login", a.webHandler.LoginPage)
	router.POST("/login", a.userHandler.Login)
	router.POST("/logout", a.userHandler.Logout)

	authed := router.Group("/", a.auth.AuthMiddleWare())
	authed.GET("/", a.webHandler.Index)
	authed.GET("/partials/papers", a.webHandler.Papers)

	api := router.Group("/api", a.auth.AuthMiddleWare())
	api.GET("/profile", a.userHandler.GetProfile)

	api.GET("/papers", a.paperHandler.List)
	api.POST("/papers", a.paperHandler.Create)
	api.GET("/papers/counts", a.paperHandler.Counts)
	api.POST("/papers/fetch-arxiv", a.paperHandler.FetchArxiv)
	api.POST("/papers/arxiv", a.paperHandler.CreateFromArxiv)
	api.POST("/papers/reorder", a.paperHandler.Reorder)
	api.GET("/papers/:id", a.paperHandler.Show)
	api.PATCH("/papers/:id", a.paperHandler.Update)
	api.DELETE("/papers/:id", a.paperHandler.Delete)
	api.POST("/papers/:id/refresh-arxiv", a.paperHandler.Refresh)
	api.POST("/papers/:id/like", a.paperHandler.Like)
	api.POST("/papers/:id/move", a.paperHandler.Move)
	api.GET("/papers/:id/effort", a.paperHandler.PaperEffort)
	api.POST("/papers/:id/effort", a.paperHandler.LogEffort)
	api.GET("/papers/:id/sources", a.paperHandler.Sources)
	api.POST("/papers/:id/sources", a.paperHandler.AddSource)
	api.DELETE("/sources/:id", a.paperHandler.DeleteSource)
	api.GET("/effort", a.paperHandler.Effort)

	api.GET("/categories", a.categoryHandler.List)
	api.POST("/categories", a.categoryHandler.Create)
	api.GET("/categories/:id", a.categoryHandler.Show)
	api.PUT("/categories/:id", a.categoryHandler.Rename)
	api.DELETE("/categories/:id", a.categoryHandler.Delete)

	api.GET("/authors", a.authorHandler.List)
	api.GET("/authors/:id", a.authorHandler.Show)

	return router
}
