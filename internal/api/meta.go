package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fabrika/internal/meta"
)

// ==== навигация: что видно пользователю ====

// NavigationHandler: GET /api/nav — приложения и модули, в которых
// пользователю есть что читать.
func (s *Server) NavigationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		type navModule struct {
			Module      *meta.Module       `json:"module"`
			EntityTypes []*meta.EntityType `json:"entity_types"`
		}
		type navApp struct {
			Application *meta.Application `json:"application"`
			Modules     []navModule       `json:"modules"`
		}

		var out []navApp
		for _, app := range s.reg.Applications() {
			if !app.IsActive {
				continue
			}
			mods, err := s.perms.AccessibleModules(c.Request.Context(), userID, app.ID)
			if err != nil {
				respondError(c, err)
				return
			}
			if len(mods) == 0 {
				continue
			}
			na := navApp{Application: app}
			for _, mod := range mods {
				ets, err := s.perms.AccessibleEntityTypes(c.Request.Context(), userID, mod.ID)
				if err != nil {
					respondError(c, err)
					return
				}
				na.Modules = append(na.Modules, navModule{Module: mod, EntityTypes: ets})
			}
			out = append(out, na)
		}
		c.JSON(http.StatusOK, gin.H{"applications": out})
	}
}

// EntityTypeHandler: GET /api/types/:type_id — тип с определениями атрибутов.
func (s *Server) EntityTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, typeID, meta.OpRead); err != nil {
			respondError(c, err)
			return
		}
		et, found := s.reg.EntityType(typeID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "entity_type", "entity type not found")},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"entity_type": et,
			"attributes":  s.reg.Attributes(typeID),
			"states":      s.reg.States(typeID),
		})
	}
}

// FormHandler: GET /api/types/:type_id/forms/:form_type — разрешённая форма
// с полями и опциями dropdown'ов.
func (s *Server) FormHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, typeID, meta.OpRead); err != nil {
			respondError(c, err)
			return
		}
		ft := meta.FormType(strings.ToUpper(strings.TrimSpace(c.Param("form_type"))))
		if !ft.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "form_type", "unknown form type")},
			})
			return
		}
		rf, err := s.forms.Resolve(c.Request.Context(), typeID, ft)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rf)
	}
}

// PermissionsHandler: GET /api/types/:type_id/permissions — агрегированные
// права текущего пользователя.
func (s *Server) PermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		p, err := s.perms.GetPermissions(c.Request.Context(), userID, typeID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ==== дизайнер: изменение метаданных ====

// DesignerCreateEntityTypeHandler: POST /api/designer/modules/:module_id/types
func (s *Server) DesignerCreateEntityTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, actor, ok := s.actor(c)
		if !ok {
			return
		}
		moduleID, ok := pathID(c, "module_id")
		if !ok {
			return
		}
		if _, found := s.reg.Module(moduleID); !found {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "module", "module not found")},
			})
			return
		}

		var et meta.EntityType
		if err := c.ShouldBindJSON(&et); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}
		et.ModuleID = moduleID
		et.CreatedBy = actor

		if _, err := meta.CreateEntityType(c.Request.Context(), s.db, &et); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusCreated, et)
	}
}

// DesignerCreateAttributeHandler: POST /api/designer/types/:type_id/attributes
func (s *Server) DesignerCreateAttributeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, actor, ok := s.actor(c)
		if !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		if _, found := s.reg.EntityType(typeID); !found {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "entity_type", "entity type not found")},
			})
			return
		}

		var a meta.AttributeDefinition
		if err := c.ShouldBindJSON(&a); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}
		a.EntityTypeID = typeID
		a.CreatedBy = actor

		if _, err := meta.CreateAttribute(c.Request.Context(), s.db, &a); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusCreated, a)
	}
}

// DesignerDeleteAttributeHandler: DELETE /api/designer/attributes/:id
func (s *Server) DesignerDeleteAttributeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := meta.DeleteAttribute(c.Request.Context(), s.db, s.reg, id); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DesignerDeleteEntityTypeHandler: DELETE /api/designer/types/:type_id
func (s *Server) DesignerDeleteEntityTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		if err := meta.DeleteEntityType(c.Request.Context(), s.db, s.reg, typeID); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DesignerCreateFormHandler: POST /api/designer/types/:type_id/forms
func (s *Server) DesignerCreateFormHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		if _, found := s.reg.EntityType(typeID); !found {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "entity_type", "entity type not found")},
			})
			return
		}

		var f meta.FormDefinition
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}
		f.EntityTypeID = typeID

		if _, err := meta.CreateForm(c.Request.Context(), s.db, &f); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusCreated, f)
	}
}

// DesignerAddFormFieldHandler: POST /api/designer/forms/:form_id/fields
func (s *Server) DesignerAddFormFieldHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := s.actor(c); !ok {
			return
		}
		formID, ok := pathID(c, "form_id")
		if !ok {
			return
		}
		if _, found := s.reg.Form(formID); !found {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "form", "form not found")},
			})
			return
		}

		var ff meta.FormFieldConfiguration
		if err := c.ShouldBindJSON(&ff); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}
		ff.FormDefinitionID = formID

		if _, err := meta.AddFormField(c.Request.Context(), s.db, &ff); err != nil {
			respondError(c, err)
			return
		}
		s.reloadRegistry(c)
		c.JSON(http.StatusCreated, ff)
	}
}

// reloadRegistry перечитывает слепок после мутации метаданных. Ошибка не
// валит ответ: мутация уже в базе, реестр догонит на следующем reload.
func (s *Server) reloadRegistry(c *gin.Context) {
	snap, err := meta.Load(c.Request.Context(), s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("registry reload after designer change failed")
		return
	}
	s.reg.Replace(snap)
}
