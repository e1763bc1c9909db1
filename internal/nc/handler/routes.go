package handler

import (
	"github.com/Nikolaihoj1/millpoint-nc/internal/middleware"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under r. Setup media is public so that
// <img> and <video> tags can load it; everything else needs a token.
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)

	api := r.Group("/api")
	api.GET("/files/:category/:filename", publicMedia(auth), h.File.Serve)

	authorized := api.Group("")
	authorized.Use(auth)
	{
		authorized.GET("/events", h.SSE.Stream)

		machines := authorized.Group("/machines")
		{
			machines.GET("", h.Machine.List)
			machines.POST("", h.Machine.Create)
			machines.GET("/:id", h.Machine.Get)
			machines.PUT("/:id", h.Machine.Update)
			machines.DELETE("/:id", h.Machine.Delete)
			machines.PATCH("/:id/status", h.Machine.UpdateStatus)
			machines.GET("/:id/next-program-number", h.Machine.NextProgramNumber)
		}

		programs := authorized.Group("/programs")
		{
			programs.GET("", h.Program.List)
			programs.POST("", h.Program.Create)
			programs.GET("/:id", h.Program.Get)
			programs.PUT("/:id", h.Program.Update)
			programs.DELETE("/:id", h.Program.Delete)
			programs.POST("/:id/approve", h.Program.Approve)
			programs.GET("/:id/versions", h.Program.ListVersions)
			programs.POST("/:id/versions", h.Program.CreateVersion)
			programs.GET("/:id/versions/:versionId/content", h.Program.VersionContent)
			programs.POST("/:id/files", h.Program.UploadFile)
		}

		sheets := authorized.Group("/setup-sheets")
		{
			sheets.GET("", h.SetupSheet.List)
			sheets.POST("", h.SetupSheet.Create)
			sheets.GET("/:id", h.SetupSheet.Get)
			sheets.PUT("/:id", h.SetupSheet.Update)
			sheets.DELETE("/:id", h.SetupSheet.Delete)
			sheets.POST("/:id/approve", h.SetupSheet.Approve)
			sheets.POST("/:id/upload", h.SetupSheet.Upload)
			sheets.DELETE("/:id/media/:mediaId", h.SetupSheet.DeleteMedia)
			sheets.GET("/:id/export", h.SetupSheet.Export)
		}

		authorized.POST("/search/reindex", middleware.RequireRole("admin"), h.Search.Reindex)
	}
}

// publicMedia skips auth for the media category only.
func publicMedia(auth gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("category") == entity.FileCategoryMedia {
			c.Next()
			return
		}
		auth(c)
	}
}
