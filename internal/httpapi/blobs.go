package httpapi

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/palletizer/registry/internal/registry"
)

// registerBlobRoutes wires raw crate blob download under the crate
// directory, matching any sub-path Cargo's download_url template resolves
// to (typically <crate>/<crate>-<version>.crate).
func registerBlobRoutes(router gin.IRouter, reg *registry.Registry) {
	router.GET("/crates/*path", handleBlob(reg))
	router.HEAD("/crates/*path", handleBlob(reg))
}

func handleBlob(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		rel := filepath.Clean(c.Param("path"))
		path := filepath.Join(reg.Config().CrateDirAbs(reg.Path()), rel)

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				c.Status(http.StatusNotFound)
				return
			}
			if os.IsPermission(err) {
				c.Status(http.StatusUnauthorized)
				return
			}
			c.Header("Cache-Control", "no-store")
			c.String(http.StatusInternalServerError, "internal error: %v", err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			c.Header("Cache-Control", "no-store")
			c.String(http.StatusInternalServerError, "internal error: %v", err)
			return
		}

		c.Header("Content-Type", "application/gzip")
		http.ServeContent(c.Writer, c.Request, filepath.Base(path), info.ModTime(), f)
	}
}
