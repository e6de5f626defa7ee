// Package forms разрешает формы и собирает динамические опции dropdown'ов.
package forms

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

// Option — одна опция выпадающего списка.
type Option struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	InstanceID int64  `json:"instance_id"`
}

// ResolvedForm — форма, её видимые поля и опции для полей с выбором,
// ключ карты — код атрибута поля.
type ResolvedForm struct {
	Form    *meta.FormDefinition           `json:"form"`
	Fields  []*meta.FormFieldConfiguration `json:"fields"`
	Options map[string][]Option            `json:"options,omitempty"`
}

type Engine struct {
	db  *sql.DB
	reg *meta.Registry
	log zerolog.Logger
}

func NewEngine(db *sql.DB, reg *meta.Registry, log zerolog.Logger) *Engine {
	return &Engine{db: db, reg: reg, log: log.With().Str("component", "forms").Logger()}
}

// VisibleFields — видимые поля формы в сконфигурированном порядке.
func (e *Engine) VisibleFields(formID int64) []*meta.FormFieldConfiguration {
	var out []*meta.FormFieldConfiguration
	for _, ff := range e.reg.Fields(formID) {
		if ff.IsVisible {
			out = append(out, ff)
		}
	}
	return out
}

// Resolve находит форму типа и собирает опции для всех полей с выбором.
func (e *Engine) Resolve(ctx context.Context, entityTypeID int64, ft meta.FormType) (*ResolvedForm, error) {
	form, ok := e.reg.FormFor(entityTypeID, ft)
	if !ok {
		return nil, apperr.NotFound("form", fmt.Sprintf("%d/%s", entityTypeID, ft))
	}
	rf := &ResolvedForm{
		Form:    form,
		Fields:  e.VisibleFields(form.ID),
		Options: make(map[string][]Option),
	}
	for _, ff := range rf.Fields {
		if !needsOptions(ff.FieldType) {
			continue
		}
		attr, ok := e.reg.Attribute(ff.AttributeDefinitionID)
		if !ok {
			continue
		}
		opts, err := e.DropdownOptions(ctx, ff)
		if err != nil {
			return nil, err
		}
		if opts != nil {
			rf.Options[attr.Code] = opts
		}
	}
	return rf, nil
}

func needsOptions(ft meta.FieldType) bool {
	return ft == meta.FieldSelect || ft == meta.FieldMultiselect || ft == meta.FieldRadio
}

// DropdownOptions собирает опции поля из живых инстансов сущности-источника.
// Битая проводка — не ошибка: форма рендерится с пустым списком.
func (e *Engine) DropdownOptions(ctx context.Context, ff *meta.FormFieldConfiguration) ([]Option, error) {
	if ff.DropdownSourceEntityID == nil || ff.DropdownSourceAttributeID == nil {
		return nil, nil
	}
	srcEntity := *ff.DropdownSourceEntityID
	srcAttr, ok := e.reg.Attribute(*ff.DropdownSourceAttributeID)
	if !ok || srcAttr.EntityTypeID != srcEntity {
		e.log.Debug().Int64("field", ff.ID).Int64("attribute", *ff.DropdownSourceAttributeID).
			Msg("dropdown source attribute missing, options degraded to empty")
		return nil, nil
	}
	if _, ok := e.reg.EntityType(srcEntity); !ok {
		e.log.Debug().Int64("field", ff.ID).Int64("entity_type", srcEntity).
			Msg("dropdown source entity type missing, options degraded to empty")
		return nil, nil
	}

	values, err := e.attributeValues(ctx, srcEntity, srcAttr)
	if err != nil {
		return nil, err
	}

	labels := values
	if ff.DropdownDisplayAttributeID != nil && *ff.DropdownDisplayAttributeID != srcAttr.ID {
		if dispAttr, ok := e.reg.Attribute(*ff.DropdownDisplayAttributeID); ok && dispAttr.EntityTypeID == srcEntity {
			labels, err = e.attributeValues(ctx, srcEntity, dispAttr)
			if err != nil {
				return nil, err
			}
		}
	}

	// обход по id инстансов: "первое вхождение" при дедупликации детерминировано
	instIDs := make([]int64, 0, len(values))
	for instID := range values {
		instIDs = append(instIDs, instID)
	}
	sort.Slice(instIDs, func(i, j int) bool { return instIDs[i] < instIDs[j] })

	seen := make(map[string]struct{}, len(values))
	var out []Option
	for _, instID := range instIDs {
		v := values[instID]
		if ff.ShowUniqueValuesOnly {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
		}
		label := v
		if l, ok := labels[instID]; ok && l != "" {
			label = l
		}
		out = append(out, Option{Value: v, Label: label, InstanceID: instID})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// attributeValues — значение атрибута по каждому живому инстансу типа,
// как текст.
func (e *Engine) attributeValues(ctx context.Context, entityTypeID int64, def *meta.AttributeDefinition) (map[int64]string, error) {
	vt, ok := def.DataType.ValueTable()
	if !ok {
		return nil, nil
	}
	table := "attribute_values_text"
	switch vt {
	case meta.ValueTableNumeric:
		table = "attribute_values_numeric"
	case meta.ValueTableDatetime:
		table = "attribute_values_datetime"
	case meta.ValueTableBoolean:
		table = "attribute_values_boolean"
	}

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`
		select v.entity_instance_id, v.value::text
		from %s v
		join entity_instances i on i.id = v.entity_instance_id
		where v.attribute_definition_id = $1
		  and i.entity_type_id = $2
		  and i.is_active`, table),
		def.ID, entityTypeID)
	if err != nil {
		return nil, apperr.Store("forms.dropdown values", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var instID int64
		var v string
		if err := rows.Scan(&instID, &v); err != nil {
			return nil, apperr.Store("forms.dropdown values", err)
		}
		out[instID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("forms.dropdown values", err)
	}
	return out, nil
}
