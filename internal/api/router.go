// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты поверх Server.
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/nav", s.NavigationHandler())

		// статические "служебные" маршруты — СНАЧАЛА
		apiGroup.POST("/instances/:id/restore", s.RestoreInstanceHandler())
		apiGroup.GET("/instances/:id/history", s.InstanceHistoryHandler())

		// инстансы
		apiGroup.POST("/types/:type_id/instances", s.CreateInstanceHandler())
		apiGroup.GET("/types/:type_id/instances", s.ListInstancesHandler())
		apiGroup.GET("/instances/:id", s.GetInstanceHandler())
		apiGroup.PUT("/instances/:id", s.UpdateInstanceHandler())
		apiGroup.DELETE("/instances/:id", s.DeleteInstanceHandler())

		// метаданные и формы
		apiGroup.GET("/types/:type_id", s.EntityTypeHandler())
		apiGroup.GET("/types/:type_id/forms/:form_type", s.FormHandler())
		apiGroup.GET("/types/:type_id/permissions", s.PermissionsHandler())

		// дизайнер
		designer := apiGroup.Group("/designer")
		{
			designer.POST("/modules/:module_id/types", s.DesignerCreateEntityTypeHandler())
			designer.POST("/types/:type_id/attributes", s.DesignerCreateAttributeHandler())
			designer.DELETE("/types/:type_id", s.DesignerDeleteEntityTypeHandler())
			designer.DELETE("/attributes/:id", s.DesignerDeleteAttributeHandler())
			designer.POST("/types/:type_id/forms", s.DesignerCreateFormHandler())
			designer.POST("/forms/:form_id/fields", s.DesignerAddFormFieldHandler())
		}

		// админка
		admin := apiGroup.Group("/admin")
		{
			admin.POST("/reload", s.AdminReloadHandler())
			admin.GET("/lint", s.AdminLintHandler())
			admin.GET("/audit/:type_id", s.AdminAuditHandler())
			admin.GET("/orgs", s.AdminOrgTreeHandler())
		}
	}

	return r
}

// RunServer поднимает HTTP-сервер на addr.
func RunServer(addr string, s *Server) error {
	return NewRouter(s).Run(addr)
}
