package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/palletizer/registry/internal/gitidx"
	"github.com/palletizer/registry/internal/index"
	"github.com/palletizer/registry/internal/manifest"
	"github.com/palletizer/registry/internal/registry"
	"github.com/palletizer/registry/internal/registrypath"
)

// cargoError writes the Cargo error envelope at HTTP 200, as Cargo's client
// expects user-facing failures to arrive with a 200 status and an errors
// array rather than a non-2xx status.
func cargoError(c *gin.Context, detail string) {
	c.JSON(http.StatusOK, gin.H{"errors": []gin.H{{"detail": detail}}})
}

// writeError classifies err per the validation/conflict/not-found vs.
// I/O/internal taxonomy and writes the matching response.
func writeError(c *gin.Context, err error) {
	switch err.(type) {
	case *registry.DisallowedDependencyRegistryError,
		*registry.CrateNotFoundError,
		*registry.VersionNotFoundError,
		*index.DuplicateVersionError,
		*registrypath.ErrInvalidName,
		*manifest.MissingError,
		*manifest.ParseError,
		*gitidx.RepoBusyError,
		*gitidx.IndexDirtyError,
		*InvalidBodyFramingError:
		cargoError(c, err.Error())
		return
	}

	log.Error().Err(err).Msg("internal error serving request")
	c.Header("Cache-Control", "no-store")
	c.String(http.StatusInternalServerError, "internal error: %v", err)
}

func methodNotAllowed(c *gin.Context, allowed string) {
	c.Header("Allowed", allowed)
	c.String(http.StatusMethodNotAllowed, "method not allowed, allowed: %s", allowed)
}
