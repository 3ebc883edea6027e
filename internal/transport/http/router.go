package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/feedby/feedline/internal/handlers"
	"github.com/feedby/feedline/internal/middleware/auth"
)

type Deps struct {
	DB             *gorm.DB
	JWTSecret      []byte
	AuthHandler    *handlers.AuthHandler
	PostHandler    *handlers.PostHandler
	CommentHandler *handlers.CommentHandler
	LikeHandler    *handlers.LikeHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	requireAuth := auth.RequireAuth(d.JWTSecret)
	optionalAuth := auth.OptionalAuth(d.JWTSecret)

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/logout", d.AuthHandler.LogOut)
	authGroup.GET("/me", d.AuthHandler.Me, requireAuth)

	posts := v1.Group("/posts")
	posts.GET("", d.PostHandler.GetPosts, optionalAuth)
	posts.GET("/:id", d.PostHandler.GetPost, optionalAuth)
	posts.GET("/:id/comments", d.CommentHandler.GetComments)
	posts.POST("", d.PostHandler.CreatePost, requireAuth)
	posts.PUT("/:id", d.PostHandler.UpdatePost, requireAuth)
	posts.DELETE("/:id", d.PostHandler.DeletePost, requireAuth)

	comments := v1.Group("/comments", requireAuth)
	comments.POST("", d.CommentHandler.CreateComment)
	comments.DELETE("/:id", d.CommentHandler.DeleteComment)

	v1.POST("/likes", d.LikeHandler.ToggleLike, requireAuth)

	v1.GET("/search", d.SearchHandler.Search)
}
