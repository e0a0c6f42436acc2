package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/palletizer/registry/internal/gitsmart"
)

const uploadPackRequestContentType = "application/x-git-upload-pack-request"

// registerGitSmartRoutes wires the read-only half of the git smart HTTP
// transport under prefix, so Cargo clients can `git clone`/fetch the index
// the same way they would against any git host.
func registerGitSmartRoutes(router gin.IRouter, prefix, repoPath string) {
	group := router.Group(prefix)
	group.GET("/info/refs", handleInfoRefs(repoPath))
	group.POST("/git-upload-pack", handleUploadPack(repoPath))
	group.POST("/git-receive-pack", handleReceivePack())
}

func handleInfoRefs(repoPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		service := c.Query("service")
		switch service {
		case "":
			c.String(http.StatusBadRequest, "Dumb HTTP protocol not supported")
			return
		case "git-receive-pack":
			c.String(http.StatusForbidden, "This repository is read-only")
			return
		case "git-upload-pack":
			// handled below
		default:
			c.String(http.StatusBadRequest, "Unrecognized query parameters")
			return
		}

		advertisement, err := gitsmart.AdvertiseRefs(repoPath)
		if err != nil {
			log.Error().Err(err).Str("repo", repoPath).Msg("git-upload-pack --advertise-refs failed")
			c.Header("Cache-Control", "no-store")
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		c.Header("Content-Type", "application/x-git-upload-pack-advertisement")
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "application/x-git-upload-pack-advertisement", advertisement)
	}
}

func handleUploadPack(repoPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != uploadPackRequestContentType {
			c.Status(http.StatusUnsupportedMediaType)
			return
		}

		c.Header("Content-Type", "application/x-git-upload-pack-result")
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		if err := gitsmart.UploadPack(repoPath, c.Request.Body, c.Writer); err != nil {
			log.Error().Err(err).Str("repo", repoPath).Msg("git-upload-pack --stateless-rpc failed")
		}
	}
}

func handleReceivePack() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusForbidden, "This repository is read-only")
	}
}
