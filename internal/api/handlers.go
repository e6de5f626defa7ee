package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fabrika/internal/audit"
	"fabrika/internal/eav"
	"fabrika/internal/forms"
	"fabrika/internal/meta"
	"fabrika/internal/perm"
)

// Server — тонкая HTTP-граница: разбор запроса, проверка прав, вызов ядра,
// перевод доменных ошибок в статусы.
type Server struct {
	db        *sql.DB
	reg       *meta.Registry
	instances *eav.Manager
	forms     *forms.Engine
	perms     *perm.Engine
	audit     *audit.Recorder
	log       zerolog.Logger
}

func NewServer(db *sql.DB, reg *meta.Registry, log zerolog.Logger) *Server {
	return &Server{
		db:        db,
		reg:       reg,
		instances: eav.NewManager(db, reg, log),
		forms:     forms.NewEngine(db, reg, log),
		perms:     perm.NewEngine(db, reg, log),
		audit:     audit.NewRecorder(db, log),
		log:       log.With().Str("component", "api").Logger(),
	}
}

// actor достаёт пользователя из заголовков. Аутентификация живёт перед нами
// (gateway), здесь только идентификация.
func (s *Server) actor(c *gin.Context) (int64, string, bool) {
	idRaw := strings.TrimSpace(c.GetHeader("X-User-Id"))
	userID, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errors": []FieldError{ferr(ErrUnauthenticated, "X-User-Id", "missing or invalid user id header")},
		})
		return 0, "", false
	}
	name := strings.TrimSpace(c.GetHeader("X-User-Name"))
	if name == "" {
		name = idRaw
	}
	return userID, name, true
}

// reqMeta — ip и user agent запроса для журнала аудита.
func reqMeta(c *gin.Context) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrValidation, name, "must be a positive integer id")},
		})
		return 0, false
	}
	return id, true
}

// CreateInstanceHandler: POST /api/types/:type_id/instances
func (s *Server) CreateInstanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, actor, ok := s.actor(c)
		if !ok {
			return
		}
		typeID, ok := pathID(c, "type_id")
		if !ok {
			return
		}
		// сначала права, потом всё остальное
		if err := s.perms.Check(c.Request.Context(), userID, typeID, meta.OpCreate); err != nil {
			respondError(c, err)
			return
		}

		var values map[string]any
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}

		inst, err := s.instances.Create(c.Request.Context(), typeID, values, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		s.audit.Record(c.Request.Context(), typeID, inst.ID, meta.OpCreate, actor,
			nil, inst.Values, reqMeta(c))
		c.JSON(http.StatusCreated, inst)
	}
}

// ListInstancesHandler: GET /api/types/:type_id/instances
func (s *Server) ListInstancesHandler() gin.HandlerFunc {
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

		p := parseListParams(c.Request.URL.Query())
		items, err := s.instances.List(c.Request.Context(), typeID, p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":  items,
			"limit":  p.Limit,
			"offset": p.Offset,
			"count":  len(items),
		})
	}
}

// GetInstanceHandler: GET /api/instances/:id
func (s *Server) GetInstanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		inst, err := s.instances.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, inst.EntityTypeID, meta.OpRead); err != nil {
			respondError(c, err)
			return
		}
		if !inst.IsActive && c.Query("include_inactive") == "" {
			c.JSON(http.StatusNotFound, gin.H{
				"errors": []FieldError{ferr(ErrNotFound, "instance", "entity instance not found")},
			})
			return
		}
		c.JSON(http.StatusOK, inst)
	}
}

// UpdateInstanceHandler: PUT /api/instances/:id
func (s *Server) UpdateInstanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, actor, ok := s.actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		inst, err := s.instances.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, inst.EntityTypeID, meta.OpUpdate); err != nil {
			respondError(c, err)
			return
		}

		var values map[string]any
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrValidation, "", "invalid JSON body")},
			})
			return
		}

		updated, err := s.instances.Update(c.Request.Context(), id, values, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		// inst прочитан до мутации — это и есть слепок old_values
		s.audit.Record(c.Request.Context(), updated.EntityTypeID, updated.ID, meta.OpUpdate, actor,
			inst.Values, updated.Values, reqMeta(c))
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteInstanceHandler: DELETE /api/instances/:id
// По умолчанию soft delete; ?hard=true удаляет физически.
func (s *Server) DeleteInstanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, actor, ok := s.actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		inst, err := s.instances.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, inst.EntityTypeID, meta.OpDelete); err != nil {
			respondError(c, err)
			return
		}

		hard := strings.EqualFold(c.Query("hard"), "true")
		if hard {
			err = s.instances.HardDelete(c.Request.Context(), id)
		} else {
			err = s.instances.SoftDelete(c.Request.Context(), id, actor)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		s.audit.Record(c.Request.Context(), inst.EntityTypeID, id, meta.OpDelete, actor,
			inst.Values, nil, reqMeta(c))
		c.JSON(http.StatusOK, gin.H{"ok": true, "hard": hard})
	}
}

// RestoreInstanceHandler: POST /api/instances/:id/restore
func (s *Server) RestoreInstanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, actor, ok := s.actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		inst, err := s.instances.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, inst.EntityTypeID, meta.OpUpdate); err != nil {
			respondError(c, err)
			return
		}
		if err := s.instances.Restore(c.Request.Context(), id, actor); err != nil {
			respondError(c, err)
			return
		}
		s.audit.Record(c.Request.Context(), inst.EntityTypeID, id, meta.OpUpdate, actor,
			nil, inst.Values, reqMeta(c))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// InstanceHistoryHandler: GET /api/instances/:id/history
func (s *Server) InstanceHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := s.actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		inst, err := s.instances.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.perms.Check(c.Request.Context(), userID, inst.EntityTypeID, meta.OpRead); err != nil {
			respondError(c, err)
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := s.audit.ForInstance(c.Request.Context(), id, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}
