package httpapi

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/palletizer/registry/internal/index"
	"github.com/palletizer/registry/internal/manifest"
	"github.com/palletizer/registry/internal/metadatacache"
	"github.com/palletizer/registry/internal/registry"
)

// registerCargoRoutes wires the Cargo Web API: search, publish, yank, and
// unyank, under api.
func registerCargoRoutes(api *gin.RouterGroup, reg *registry.Registry, describer *metadatacache.Describer) {
	api.GET("/crates", handleSearch(reg, describer))
	api.PUT("/crates/new", handlePublish(reg))
	api.DELETE("/crates/:crate/:version/yank", handleYank(reg))
	api.PUT("/crates/:crate/:version/unyank", handleUnyank(reg))
}

func handleSearch(reg *registry.Registry, describer *metadatacache.Describer) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		perPage := 10
		if v := c.Query("per_page"); v != "" {
			if n, err := parsePositiveInt(v); err == nil {
				perPage = n
			}
		}

		result, err := reg.Search(query, perPage)
		if err != nil {
			writeError(c, err)
			return
		}

		crates := make([]gin.H, 0, len(result.Hits))
		for _, hit := range result.Hits {
			description := describeHit(c.Request.Context(), reg, describer, hit.Name, hit.MaxVersion)
			crates = append(crates, gin.H{
				"name":        hit.Name,
				"max_version": hit.MaxVersion,
				"description": description,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"crates": crates,
			"meta":   gin.H{"total": result.Total},
		})
	}
}

// describeHit resolves a search hit's description through the lazy cache,
// populating it on first miss by re-reading the published blob's manifest.
// A populate failure is logged and treated as an empty description rather
// than failing the whole search.
func describeHit(ctx context.Context, reg *registry.Registry, describer *metadatacache.Describer, name, version string) string {
	if describer == nil {
		return ""
	}
	desc, err := describer.Describe(ctx, name, func() (string, error) {
		blob, err := reg.CrateBytes(name, version)
		if err != nil {
			return "", err
		}
		m, err := manifest.Extract(bytes.NewReader(blob))
		if err != nil {
			return "", err
		}
		return m.Package.Description, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("crate", name).Msg("failed to populate crate description")
		return ""
	}
	return desc
}

func handlePublish(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta, blob, err := parsePublishBody(c.Request.Body)
		if err != nil {
			writeError(c, err)
			return
		}

		checksum := checksumHex(blob)
		entry := index.FromNewCrateMeta(meta, checksum)
		if err := reg.AddCrateWithMetadata(entry, blob); err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"warnings": gin.H{
				"invalid_categories": []string{},
				"invalid_badges":     []string{},
				"other":              []string{},
			},
		})
	}
}

func handleYank(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("crate")
		version := c.Param("version")
		if _, err := reg.Yank(name, version); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleUnyank(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("crate")
		version := c.Param("version")
		if _, err := reg.Unyank(name, version); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
