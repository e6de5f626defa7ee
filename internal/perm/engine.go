// Package perm — CRUD-матрица доступа: роли пользователя OR-агрегируются
// по entity type. Кэша нет, каждый запрос читает актуальное состояние.
package perm

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

// Permissions — агрегированные права пользователя на entity type.
type Permissions struct {
	CanRead   bool `json:"can_read"`
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

func (p Permissions) Allows(op meta.Operation) bool {
	switch op {
	case meta.OpRead:
		return p.CanRead
	case meta.OpCreate:
		return p.CanCreate
	case meta.OpUpdate:
		return p.CanUpdate
	case meta.OpDelete:
		return p.CanDelete
	}
	return false
}

type Engine struct {
	db  *sql.DB
	reg *meta.Registry
	log zerolog.Logger
}

func NewEngine(db *sql.DB, reg *meta.Registry, log zerolog.Logger) *Engine {
	return &Engine{db: db, reg: reg, log: log.With().Str("component", "perm").Logger()}
}

// GetPermissions — OR по всем активным ролям пользователя. Нет ролей или
// строк матрицы — всё запрещено.
func (e *Engine) GetPermissions(ctx context.Context, userID, entityTypeID int64) (Permissions, error) {
	var p Permissions
	err := e.db.QueryRowContext(ctx, `
		select coalesce(bool_or(ep.can_read), false),
		       coalesce(bool_or(ep.can_create), false),
		       coalesce(bool_or(ep.can_update), false),
		       coalesce(bool_or(ep.can_delete), false)
		from entity_permissions ep
		join user_roles ur on ur.role_id = ep.role_id
		join roles r on r.id = ep.role_id and r.is_active
		where ur.user_id = $1 and ep.entity_type_id = $2`,
		userID, entityTypeID).Scan(&p.CanRead, &p.CanCreate, &p.CanUpdate, &p.CanDelete)
	if err != nil {
		return Permissions{}, apperr.Store("perm.get", err)
	}
	return p, nil
}

// Check возвращает PermissionError, если операция не разрешена.
func (e *Engine) Check(ctx context.Context, userID, entityTypeID int64, op meta.Operation) error {
	p, err := e.GetPermissions(ctx, userID, entityTypeID)
	if err != nil {
		return err
	}
	if !p.Allows(op) {
		return &apperr.PermissionError{Operation: string(op), EntityTypeID: entityTypeID}
	}
	return nil
}

// CanAccessModule — модуль доступен, если читается хотя бы один его
// активный entity type.
func (e *Engine) CanAccessModule(ctx context.Context, userID, moduleID int64) (bool, error) {
	for _, et := range e.reg.EntityTypesOf(moduleID) {
		p, err := e.GetPermissions(ctx, userID, et.ID)
		if err != nil {
			return false, err
		}
		if p.CanRead {
			return true, nil
		}
	}
	return false, nil
}

// AccessibleEntityTypes — читаемые entity types модуля, порядок реестра
// сохраняется.
func (e *Engine) AccessibleEntityTypes(ctx context.Context, userID, moduleID int64) ([]*meta.EntityType, error) {
	var out []*meta.EntityType
	for _, et := range e.reg.EntityTypesOf(moduleID) {
		p, err := e.GetPermissions(ctx, userID, et.ID)
		if err != nil {
			return nil, err
		}
		if p.CanRead {
			out = append(out, et)
		}
	}
	return out, nil
}

// AccessibleModules — модули приложения, где пользователю есть что читать.
func (e *Engine) AccessibleModules(ctx context.Context, userID, applicationID int64) ([]*meta.Module, error) {
	var out []*meta.Module
	for _, mod := range e.reg.ModulesOf(applicationID) {
		if !mod.IsActive {
			continue
		}
		ok, err := e.CanAccessModule(ctx, userID, mod.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, mod)
		}
	}
	return out, nil
}

// ResolveUser находит активного пользователя по имени.
func (e *Engine) ResolveUser(ctx context.Context, username string) (*meta.User, error) {
	u := &meta.User{}
	err := e.db.QueryRowContext(ctx, `
		select id, username, email, first_name, last_name, is_active
		from users where username = $1 and is_active`, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user", username)
	}
	if err != nil {
		return nil, apperr.Store("perm.resolve user", err)
	}
	return u, nil
}
