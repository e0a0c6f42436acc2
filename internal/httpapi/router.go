// Package httpapi is the HTTP adapter: it routes the Cargo Web API,
// raw crate blob downloads, and the git smart HTTP transport to a
// *registry.Registry, and owns the error-envelope/status-code mapping
// described by the registry's error taxonomy.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/palletizer/registry/internal/metadatacache"
	"github.com/palletizer/registry/internal/registry"
)

// NewRouter builds the gin engine serving reg. describer may be nil, in
// which case search results always report an empty description.
func NewRouter(reg *registry.Registry, describer *metadatacache.Describer) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		methodNotAllowed(c, "")
	})

	api := router.Group("/api/v1")
	registerCargoRoutes(api, reg, describer)

	registerBlobRoutes(router, reg)
	registerGitSmartRoutes(router, "/index", reg.Config().IndexDirAbs(reg.Path()))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return router
}

// requestLogger mirrors the teacher's gin request logging shape, but
// through zerolog instead of logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logEvent(c, time.Since(start))
	}
}
