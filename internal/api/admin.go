package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fabrika/internal/meta"
	"fabrika/internal/orgs"
)

// AdminReloadHandler: POST /api/admin/reload — перечитывает метаданные из
// базы и атомарно подменяет реестр. Диагностика линтера идёт в ответ, но
// reload не блокирует.
func (s *Server) AdminReloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		snap, err := meta.Load(c.Request.Context(), s.db)
		if err != nil {
			respondError(c, err)
			return
		}
		s.reg.Replace(snap)

		issues := s.reg.Lint()
		c.JSON(http.StatusOK, gin.H{
			"ok":           true,
			"entity_types": len(snap.EntityTypes),
			"attributes":   len(snap.Attributes),
			"forms":        len(snap.Forms),
			"issues":       issues,
		})
	}
}

// AdminLintHandler: GET /api/admin/lint — диагностика текущих метаданных.
func (s *Server) AdminLintHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		issues := s.reg.Lint()
		c.JSON(http.StatusOK, gin.H{"issues": issues, "count": len(issues)})
	}
}

// AdminAuditHandler: GET /api/admin/audit/:type_id — последние записи журнала.
func (s *Server) AdminAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := s.audit.Recent(c.Request.Context(), typeID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}

// AdminOrgTreeHandler: GET /api/admin/orgs — дерево подразделений.
func (s *Server) AdminOrgTreeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		arena, err := orgs.Load(c.Request.Context(), s.db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tree": arena.Tree(), "units": len(arena.Units())})
	}
}
