package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"fabrika/internal/apperr"
)

// Load читает полный слепок метаданных из фиксированных таблиц.
func Load(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	s := &Snapshot{}

	if err := loadApplications(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load applications", err)
	}
	if err := loadModules(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load modules", err)
	}
	if err := loadEntityTypes(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load entity types", err)
	}
	if err := loadAttributes(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load attributes", err)
	}
	if err := loadForms(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load forms", err)
	}
	if err := loadFormFields(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load form fields", err)
	}
	if err := loadStates(ctx, db, s); err != nil {
		return nil, apperr.Store("meta.load workflow states", err)
	}
	return s, nil
}

func loadApplications(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, code, name, description, icon, order_index, is_active,
		       created_at, updated_at, created_by, updated_by
		from applications order by order_index, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		a := &Application{}
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Icon,
			&a.OrderIndex, &a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy, &a.UpdatedBy); err != nil {
			return err
		}
		s.Applications = append(s.Applications, a)
	}
	return rows.Err()
}

func loadModules(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, application_id, code, name, description, icon, order_index,
		       is_system, is_active, created_at, updated_at, created_by, updated_by
		from modules order by order_index, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		m := &Module{}
		if err := rows.Scan(&m.ID, &m.ApplicationID, &m.Code, &m.Name, &m.Description, &m.Icon,
			&m.OrderIndex, &m.IsSystem, &m.IsActive, &m.CreatedAt, &m.UpdatedAt, &m.CreatedBy, &m.UpdatedBy); err != nil {
			return err
		}
		s.Modules = append(s.Modules, m)
	}
	return rows.Err()
}

func loadEntityTypes(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, module_id, code, name, description, is_master, is_transactional,
		       icon, order_index, is_active, created_at, updated_at, created_by, updated_by
		from entity_types order by order_index, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		et := &EntityType{}
		if err := rows.Scan(&et.ID, &et.ModuleID, &et.Code, &et.Name, &et.Description,
			&et.IsMaster, &et.IsTransactional, &et.Icon, &et.OrderIndex, &et.IsActive,
			&et.CreatedAt, &et.UpdatedAt, &et.CreatedBy, &et.UpdatedBy); err != nil {
			return err
		}
		s.EntityTypes = append(s.EntityTypes, et)
	}
	return rows.Err()
}

func loadAttributes(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, entity_type_id, code, name, description, data_type, max_length,
		       decimal_precision, decimal_scale, default_value, is_required, is_unique,
		       is_indexed, validation_rules, order_index, is_active,
		       created_at, updated_at, created_by, updated_by
		from attribute_definitions order by order_index, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		a := &AttributeDefinition{}
		var dt string
		if err := rows.Scan(&a.ID, &a.EntityTypeID, &a.Code, &a.Name, &a.Description, &dt,
			&a.MaxLength, &a.DecimalPrecision, &a.DecimalScale, &a.DefaultValue,
			&a.IsRequired, &a.IsUnique, &a.IsIndexed, &a.ValidationRules,
			&a.OrderIndex, &a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy, &a.UpdatedBy); err != nil {
			return err
		}
		a.DataType = DataType(dt)
		s.Attributes = append(s.Attributes, a)
	}
	return rows.Err()
}

func loadForms(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, entity_type_id, code, name, description, form_type, layout_type,
		       records_per_page, allow_inline_edit, show_attachment_count,
		       mandatory_confirmation, is_default, is_active, created_at, updated_at
		from form_definitions order by id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		f := &FormDefinition{}
		var ft, lt string
		if err := rows.Scan(&f.ID, &f.EntityTypeID, &f.Code, &f.Name, &f.Description, &ft, &lt,
			&f.RecordsPerPage, &f.AllowInlineEdit, &f.ShowAttachmentCount,
			&f.MandatoryConfirmation, &f.IsDefault, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return err
		}
		f.FormType = FormType(ft)
		f.LayoutType = LayoutType(lt)
		s.Forms = append(s.Forms, f)
	}
	return rows.Err()
}

func loadFormFields(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, form_definition_id, attribute_definition_id, field_label, field_type,
		       placeholder_text, help_text, order_index, grid_column_span, grid_row_span,
		       is_visible, is_editable, is_required, is_searchable, is_sortable,
		       dropdown_source_entity_id, dropdown_source_attribute_id,
		       dropdown_display_attribute_id, show_unique_values_only,
		       conditional_visibility_rules, conditional_requirement_rules,
		       conditional_editability_rules, validation_rules, css_classes
		from form_field_configurations order by id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		ff := &FormFieldConfiguration{}
		var ftype string
		var vis, req, edit, vr []byte
		if err := rows.Scan(&ff.ID, &ff.FormDefinitionID, &ff.AttributeDefinitionID,
			&ff.FieldLabel, &ftype, &ff.PlaceholderText, &ff.HelpText, &ff.OrderIndex,
			&ff.GridColumnSpan, &ff.GridRowSpan, &ff.IsVisible, &ff.IsEditable,
			&ff.IsRequired, &ff.IsSearchable, &ff.IsSortable,
			&ff.DropdownSourceEntityID, &ff.DropdownSourceAttributeID,
			&ff.DropdownDisplayAttributeID, &ff.ShowUniqueValuesOnly,
			&vis, &req, &edit, &vr, &ff.CSSClasses); err != nil {
			return err
		}
		ff.FieldType = FieldType(ftype)
		ff.ConditionalVisibilityRules = vis
		ff.ConditionalRequirementRules = req
		ff.ConditionalEditabilityRules = edit
		ff.ValidationRules = vr
		s.FormFields = append(s.FormFields, ff)
	}
	return rows.Err()
}

func loadStates(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		select id, entity_type_id, code, name, is_initial, is_final, color, order_index, is_active
		from workflow_states order by order_index, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		ws := &WorkflowState{}
		if err := rows.Scan(&ws.ID, &ws.EntityTypeID, &ws.Code, &ws.Name,
			&ws.IsInitial, &ws.IsFinal, &ws.Color, &ws.OrderIndex, &ws.IsActive); err != nil {
			return err
		}
		s.States = append(s.States, ws)
	}
	return rows.Err()
}

// ==== designer-операции ====
// Пишут в таблицы метаданных; перечитать Registry — забота вызывающего.

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateEntityType добавляет новый entity type в модуль.
func CreateEntityType(ctx context.Context, db *sql.DB, et *EntityType) (int64, error) {
	et.Code = strings.ToUpper(strings.TrimSpace(et.Code))
	if et.Code == "" {
		return 0, apperr.Validation("code", "must not be empty")
	}
	var id int64
	err := db.QueryRowContext(ctx, `
		insert into entity_types (module_id, code, name, description, is_master,
			is_transactional, icon, order_index, is_active, created_by, updated_by)
		values ($1,$2,$3,$4,$5,$6,$7,$8,true,$9,$9)
		returning id`,
		et.ModuleID, et.Code, et.Name, et.Description, et.IsMaster,
		et.IsTransactional, et.Icon, et.OrderIndex, et.CreatedBy).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperr.Validation("code", fmt.Sprintf("entity type %q already exists in module", et.Code))
		}
		return 0, apperr.Store("meta.create entity type", err)
	}
	et.ID = id
	return id, nil
}

// CreateAttribute добавляет определение атрибута.
func CreateAttribute(ctx context.Context, db *sql.DB, a *AttributeDefinition) (int64, error) {
	a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
	if a.Code == "" {
		return 0, apperr.Validation("code", "must not be empty")
	}
	if !a.DataType.Valid() {
		return 0, apperr.Validation(a.Code, fmt.Sprintf("unknown data type %q", a.DataType))
	}
	var id int64
	err := db.QueryRowContext(ctx, `
		insert into attribute_definitions (entity_type_id, code, name, description,
			data_type, max_length, decimal_precision, decimal_scale, default_value,
			is_required, is_unique, is_indexed, validation_rules, order_index,
			is_active, created_by, updated_by)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,true,$15,$15)
		returning id`,
		a.EntityTypeID, a.Code, a.Name, a.Description, string(a.DataType),
		a.MaxLength, a.DecimalPrecision, a.DecimalScale, a.DefaultValue,
		a.IsRequired, a.IsUnique, a.IsIndexed, a.ValidationRules, a.OrderIndex, a.CreatedBy).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperr.Validation(a.Code, "attribute code already exists on entity type")
		}
		return 0, apperr.Store("meta.create attribute", err)
	}
	a.ID = id
	return id, nil
}

// valueTableName — имя EAV-таблицы для типа атрибута.
func valueTableName(vt ValueTable) string {
	switch vt {
	case ValueTableNumeric:
		return "attribute_values_numeric"
	case ValueTableDatetime:
		return "attribute_values_datetime"
	case ValueTableBoolean:
		return "attribute_values_boolean"
	default:
		return "attribute_values_text"
	}
}

// DeleteAttribute удаляет определение; блокируется, пока на него ссылаются
// значения — возвращает IntegrityError со счётчиком.
func DeleteAttribute(ctx context.Context, db *sql.DB, reg *Registry, attributeID int64) error {
	def, ok := reg.Attribute(attributeID)
	if !ok {
		return apperr.NotFound("attribute", attributeID)
	}
	vt, ok := def.DataType.ValueTable()
	if !ok {
		return apperr.Validation(def.Code, fmt.Sprintf("unknown data type %q", def.DataType))
	}

	var n int64
	q := fmt.Sprintf(`select count(*) from %s where attribute_definition_id = $1`, valueTableName(vt))
	if err := db.QueryRowContext(ctx, q, attributeID).Scan(&n); err != nil {
		return apperr.Store("meta.delete attribute", err)
	}
	if n > 0 {
		return &apperr.IntegrityError{Kind: "attribute", Ref: def.Code, Dependents: n}
	}

	if _, err := db.ExecContext(ctx, `delete from attribute_definitions where id = $1`, attributeID); err != nil {
		return apperr.Store("meta.delete attribute", err)
	}
	return nil
}

// DeleteEntityType удаляет entity type; блокируется при живых инстансах.
// Определения атрибутов и формы уходят каскадом на уровне схемы.
func DeleteEntityType(ctx context.Context, db *sql.DB, reg *Registry, entityTypeID int64) error {
	et, ok := reg.EntityType(entityTypeID)
	if !ok {
		return apperr.NotFound("entity type", entityTypeID)
	}

	var n int64
	if err := db.QueryRowContext(ctx,
		`select count(*) from entity_instances where entity_type_id = $1`, entityTypeID).Scan(&n); err != nil {
		return apperr.Store("meta.delete entity type", err)
	}
	if n > 0 {
		return &apperr.IntegrityError{Kind: "entity type", Ref: et.Code, Dependents: n}
	}

	if _, err := db.ExecContext(ctx, `delete from entity_types where id = $1`, entityTypeID); err != nil {
		return apperr.Store("meta.delete entity type", err)
	}
	return nil
}

// CreateForm добавляет определение формы.
func CreateForm(ctx context.Context, db *sql.DB, f *FormDefinition) (int64, error) {
	f.Code = strings.ToUpper(strings.TrimSpace(f.Code))
	if f.Code == "" {
		return 0, apperr.Validation("code", "must not be empty")
	}
	if !f.FormType.Valid() {
		return 0, apperr.Validation(f.Code, fmt.Sprintf("unknown form type %q", f.FormType))
	}
	if f.LayoutType == "" {
		f.LayoutType = LayoutSingleColumn
	}
	if f.RecordsPerPage <= 0 {
		f.RecordsPerPage = 10
	}
	var id int64
	err := db.QueryRowContext(ctx, `
		insert into form_definitions (entity_type_id, code, name, description, form_type,
			layout_type, records_per_page, allow_inline_edit, show_attachment_count,
			mandatory_confirmation, is_default, is_active)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,true)
		returning id`,
		f.EntityTypeID, f.Code, f.Name, f.Description, string(f.FormType),
		string(f.LayoutType), f.RecordsPerPage, f.AllowInlineEdit, f.ShowAttachmentCount,
		f.MandatoryConfirmation, f.IsDefault).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperr.Validation(f.Code, "form already exists for entity type")
		}
		return 0, apperr.Store("meta.create form", err)
	}
	f.ID = id
	return id, nil
}

// AddFormField привязывает атрибут к форме.
func AddFormField(ctx context.Context, db *sql.DB, ff *FormFieldConfiguration) (int64, error) {
	if ff.GridColumnSpan <= 0 {
		ff.GridColumnSpan = 1
	}
	if ff.GridRowSpan <= 0 {
		ff.GridRowSpan = 1
	}
	var id int64
	err := db.QueryRowContext(ctx, `
		insert into form_field_configurations (form_definition_id, attribute_definition_id,
			field_label, field_type, placeholder_text, help_text, order_index,
			grid_column_span, grid_row_span, is_visible, is_editable, is_required,
			is_searchable, is_sortable, dropdown_source_entity_id,
			dropdown_source_attribute_id, dropdown_display_attribute_id,
			show_unique_values_only, conditional_visibility_rules,
			conditional_requirement_rules, conditional_editability_rules,
			validation_rules, css_classes)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		returning id`,
		ff.FormDefinitionID, ff.AttributeDefinitionID, ff.FieldLabel, string(ff.FieldType),
		ff.PlaceholderText, ff.HelpText, ff.OrderIndex, ff.GridColumnSpan, ff.GridRowSpan,
		ff.IsVisible, ff.IsEditable, ff.IsRequired, ff.IsSearchable, ff.IsSortable,
		ff.DropdownSourceEntityID, ff.DropdownSourceAttributeID, ff.DropdownDisplayAttributeID,
		ff.ShowUniqueValuesOnly,
		nullableJSON(ff.ConditionalVisibilityRules), nullableJSON(ff.ConditionalRequirementRules),
		nullableJSON(ff.ConditionalEditabilityRules), nullableJSON(ff.ValidationRules),
		ff.CSSClasses).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperr.Validation(ff.FieldLabel, "attribute already bound to form")
		}
		return 0, apperr.Store("meta.add form field", err)
	}
	ff.ID = id
	return id, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
