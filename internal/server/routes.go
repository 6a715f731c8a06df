package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-xchange/drivesync/internal/server/handlers/api"
	"github.com/open-xchange/drivesync/internal/server/handlers/drive"
	"github.com/open-xchange/drivesync/internal/server/middlewares"
	"github.com/open-xchange/drivesync/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(config.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	rateLimiter, err := middlewares.RateLimiter(config.HTTP.RateLimit)
	if err != nil {
		return nil, err
	}

	driveH := drive.New(svc.Drive, svc.Journal)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.SecureHeaders(config.HTTP.TLS()))
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS(config.HTTP.CORSOrigins))
	r.Use(ServerHeader)

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(rateLimiter)
	{
		// sync
		v1.POST("/sync/folders", driveH.SyncFolders)
		v1.POST("/sync/files", driveH.SyncFiles)
		v1.POST("/files/complete", driveH.CompleteUpload)
		v1.GET("/sync/journal", driveH.Journal)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeNotAllowed,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	// return a plaintext
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func ServerHeader(ctx *gin.Context) {
	ctx.Header("Server", version.ServerHeader())
	ctx.Next()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
