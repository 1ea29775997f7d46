package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/config"
	"github.com/octobees/enrichment-pipeline/internal/handler"
	middlewarepkg "github.com/octobees/enrichment-pipeline/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Contacts  *handler.ContactsHandler
	Recipes   *handler.RecipesHandler
	Runs      *handler.RunsHandler
	Qualifier *handler.QualifierHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, tokens middlewarepkg.TokenParser, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(tokens))
	writer := middlewarepkg.RequireRole("member", "admin")
	runLimit := middlewarepkg.RunRateLimiter(cfg.RateLimitRuns)

	lists := secured.Group("/lists/:list_id")
	lists.GET("/contacts", handlers.Contacts.List)
	lists.GET("/export", handlers.Contacts.Export)
	lists.GET("/progress", handlers.Runs.Progress)
	lists.POST("/contacts/upload", handlers.Contacts.Upload, writer)
	lists.POST("/reset", handlers.Contacts.Reset, writer)
	lists.DELETE("", handlers.Contacts.Delete, writer)

	recipes := secured.Group("/recipes")
	recipes.GET("", handlers.Recipes.List)
	recipes.GET("/:id", handlers.Recipes.Get)
	recipes.POST("", handlers.Recipes.Save, writer)
	recipes.POST("/:id/preview", handlers.Recipes.Preview)
	recipes.POST("/:id/runs", handlers.Runs.Start, writer, runLimit)

	qualifier := secured.Group("/qualifier")
	qualifier.POST("/lists/:list_id/connections", handlers.Qualifier.Upload, writer)
	qualifier.POST("/runs", handlers.Runs.Qualify, writer, runLimit)
}
