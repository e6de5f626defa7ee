package eav

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
	"fabrika/internal/rules"
)

// Instance — запись динамической сущности: фиксированная шапка плюс значения
// атрибутов по кодам.
type Instance struct {
	ID           int64          `json:"id"`
	EntityTypeID int64          `json:"entity_type_id"`
	InstanceCode string         `json:"instance_code"`
	Status       string         `json:"status,omitempty"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CreatedBy    string         `json:"created_by,omitempty"`
	UpdatedBy    string         `json:"updated_by,omitempty"`
	Values       map[string]any `json:"values"`
}

// ListParams — параметры листинга инстансов.
type ListParams struct {
	Limit           int
	Offset          int
	IncludeInactive bool
	Status          string
}

// Manager ведёт CRUD инстансов. Каждая мутация — одна транзакция: шапка и
// значения атрибутов коммитятся вместе либо откатываются вместе.
type Manager struct {
	db  *sql.DB
	reg *meta.Registry
	log zerolog.Logger

	entropyMu sync.Mutex
	entropy   io.Reader
}

func NewManager(db *sql.DB, reg *meta.Registry, log zerolog.Logger) *Manager {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Manager{
		db:      db,
		reg:     reg,
		log:     log.With().Str("component", "eav").Logger(),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Manager) newCode() string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

// Create создаёт инстанс и пишет значения всех переданных атрибутов.
// Неизвестный код атрибута — not found, а не тихий пропуск.
func (m *Manager) Create(ctx context.Context, entityTypeID int64, values map[string]any, actor string) (*Instance, error) {
	et, ok := m.reg.EntityType(entityTypeID)
	if !ok || !et.IsActive {
		return nil, apperr.NotFound("entity type", entityTypeID)
	}

	status := ""
	if ws, ok := m.reg.InitialState(entityTypeID); ok {
		status = ws.Code
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("eav.create", err)
	}
	defer tx.Rollback()

	inst := &Instance{
		EntityTypeID: entityTypeID,
		InstanceCode: m.newCode(),
		Status:       status,
		IsActive:     true,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		Values:       make(map[string]any),
	}
	err = tx.QueryRowContext(ctx, `
		insert into entity_instances (entity_type_id, instance_code, status, is_active, created_by, updated_by)
		values ($1, $2, $3, true, $4, $4)
		returning id, created_at, updated_at`,
		entityTypeID, inst.InstanceCode, status, actor).Scan(&inst.ID, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, apperr.Store("eav.create", err)
	}

	if err := m.writeValues(ctx, tx, inst, values, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Store("eav.create", err)
	}
	return inst, nil
}

// Update меняет только атрибуты, присутствующие в values; nil значение
// стирает строку в таблице значений.
func (m *Manager) Update(ctx context.Context, instanceID int64, values map[string]any, actor string) (*Instance, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("eav.update", err)
	}
	defer tx.Rollback()

	inst, err := m.loadHeader(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive {
		return nil, apperr.NotFound("entity instance", instanceID)
	}

	inst.Values = make(map[string]any)
	if err := m.writeValues(ctx, tx, inst, values, false); err != nil {
		return nil, err
	}

	inst.UpdatedBy = actor
	err = tx.QueryRowContext(ctx, `
		update entity_instances set updated_at = now(), updated_by = $2
		where id = $1 returning updated_at`,
		instanceID, actor).Scan(&inst.UpdatedAt)
	if err != nil {
		return nil, apperr.Store("eav.update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Store("eav.update", err)
	}
	return inst, nil
}

// writeValues коэрсит и пишет пачку значений внутри транзакции.
// onCreate добавляет дефолты и required-проверку по всем активным атрибутам.
func (m *Manager) writeValues(ctx context.Context, tx *sql.Tx, inst *Instance, values map[string]any, onCreate bool) error {
	defs := m.reg.Attributes(inst.EntityTypeID)

	for code := range values {
		if _, ok := m.reg.AttributeByCode(inst.EntityTypeID, code); !ok {
			return apperr.NotFound("attribute", code)
		}
	}

	for _, def := range defs {
		raw, present := lookupValue(values, def.Code)
		if !present {
			if !onCreate {
				continue // update трогает только присланное
			}
			if def.DefaultValue != "" {
				raw, present = def.DefaultValue, true
			}
		}
		if !present || raw == nil {
			if onCreate && def.IsRequired {
				return apperr.Validation(def.Code, "is required")
			}
			if present {
				if err := SetValue(ctx, tx, inst.ID, def, nil); err != nil {
					return err
				}
			}
			continue
		}

		v, err := Coerce(def, raw)
		if err != nil {
			// required — фатально; опциональный битый ввод превращается в null
			if def.IsRequired {
				return apperr.Validation(def.Code, err.Error())
			}
			m.log.Debug().Str("attribute", def.Code).Err(err).
				Msg("optional value failed coercion, stored as null")
			v = nil
		}
		if v == nil {
			if def.IsRequired {
				return apperr.Validation(def.Code, "is required")
			}
			if err := SetValue(ctx, tx, inst.ID, def, nil); err != nil {
				return err
			}
			continue
		}

		set, err := rules.Parse(def.ValidationRules)
		if err != nil {
			m.log.Warn().Str("attribute", def.Code).Err(err).Msg("bad validation rules, skipped")
		} else if err := set.Validate(v); err != nil {
			return apperr.Validation(def.Code, err.Error())
		}

		if def.IsUnique {
			taken, err := HasOtherWithValue(ctx, tx, def, v, inst.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Validation(def.Code, fmt.Sprintf("value %v is already taken", v))
			}
		}

		if err := SetValue(ctx, tx, inst.ID, def, v); err != nil {
			return err
		}
		inst.Values[def.Code] = v
	}
	return nil
}

// lookupValue ищет значение по коду атрибута без учёта регистра ключа.
func lookupValue(values map[string]any, code string) (any, bool) {
	if v, ok := values[code]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, code) {
			return v, true
		}
	}
	return nil, false
}

func (m *Manager) loadHeader(ctx context.Context, q Querier, instanceID int64) (*Instance, error) {
	inst := &Instance{}
	err := q.QueryRowContext(ctx, `
		select id, entity_type_id, instance_code, status, is_active,
		       created_at, updated_at, created_by, updated_by
		from entity_instances where id = $1`, instanceID).Scan(
		&inst.ID, &inst.EntityTypeID, &inst.InstanceCode, &inst.Status, &inst.IsActive,
		&inst.CreatedAt, &inst.UpdatedAt, &inst.CreatedBy, &inst.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("entity instance", instanceID)
	}
	if err != nil {
		return nil, apperr.Store("eav.load instance", err)
	}
	return inst, nil
}

// Get возвращает инстанс со значениями. Soft-deleted инстанс читается:
// решает вызывающий, показывать ли его.
func (m *Manager) Get(ctx context.Context, instanceID int64) (*Instance, error) {
	inst, err := m.loadHeader(ctx, m.db, instanceID)
	if err != nil {
		return nil, err
	}
	defs := m.reg.Attributes(inst.EntityTypeID)
	vals, err := fetchValues(ctx, m.db, []int64{inst.ID}, defs)
	if err != nil {
		return nil, err
	}
	inst.Values = vals[inst.ID]
	return inst, nil
}

// List возвращает страницу инстансов типа со значениями. Значения собираются
// батчем: один запрос на таблицу значений, не один на инстанс.
func (m *Manager) List(ctx context.Context, entityTypeID int64, p ListParams) ([]*Instance, error) {
	if _, ok := m.reg.EntityType(entityTypeID); !ok {
		return nil, apperr.NotFound("entity type", entityTypeID)
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}

	q := `
		select id, entity_type_id, instance_code, status, is_active,
		       created_at, updated_at, created_by, updated_by
		from entity_instances
		where entity_type_id = $1`
	args := []any{entityTypeID}
	if !p.IncludeInactive {
		q += ` and is_active`
	}
	if p.Status != "" {
		args = append(args, p.Status)
		q += fmt.Sprintf(` and status = $%d`, len(args))
	}
	args = append(args, p.Limit, p.Offset)
	q += fmt.Sprintf(` order by id desc limit $%d offset $%d`, len(args)-1, len(args))

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Store("eav.list", err)
	}
	defer rows.Close()

	var out []*Instance
	var ids []int64
	for rows.Next() {
		inst := &Instance{}
		if err := rows.Scan(&inst.ID, &inst.EntityTypeID, &inst.InstanceCode, &inst.Status,
			&inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt, &inst.CreatedBy, &inst.UpdatedBy); err != nil {
			return nil, apperr.Store("eav.list", err)
		}
		out = append(out, inst)
		ids = append(ids, inst.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("eav.list", err)
	}

	vals, err := fetchValues(ctx, m.db, ids, m.reg.Attributes(entityTypeID))
	if err != nil {
		return nil, err
	}
	for _, inst := range out {
		inst.Values = vals[inst.ID]
	}
	return out, nil
}

// SoftDelete прячет инстанс, значения остаются на месте.
func (m *Manager) SoftDelete(ctx context.Context, instanceID int64, actor string) error {
	return m.setActive(ctx, instanceID, false, actor)
}

// Restore возвращает soft-deleted инстанс.
func (m *Manager) Restore(ctx context.Context, instanceID int64, actor string) error {
	return m.setActive(ctx, instanceID, true, actor)
}

func (m *Manager) setActive(ctx context.Context, instanceID int64, active bool, actor string) error {
	res, err := m.db.ExecContext(ctx, `
		update entity_instances set is_active = $2, updated_at = now(), updated_by = $3
		where id = $1`, instanceID, active, actor)
	if err != nil {
		return apperr.Store("eav.set active", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("entity instance", instanceID)
	}
	return nil
}

// HardDelete физически удаляет инстанс; значения уходят каскадом.
func (m *Manager) HardDelete(ctx context.Context, instanceID int64) error {
	res, err := m.db.ExecContext(ctx, `delete from entity_instances where id = $1`, instanceID)
	if err != nil {
		return apperr.Store("eav.hard delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("entity instance", instanceID)
	}
	return nil
}
