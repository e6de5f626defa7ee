package meta

import (
	"encoding/json"
	"time"
)

// DataType — закрытое перечисление типов атрибутов. Любой новый тип обязан
// получить ветку в ValueTable(), иначе он просто не сохранится.
type DataType string

const (
	DataTypeVarchar   DataType = "VARCHAR"
	DataTypeText      DataType = "TEXT"
	DataTypeInt       DataType = "INT"
	DataTypeBigint    DataType = "BIGINT"
	DataTypeDecimal   DataType = "DECIMAL"
	DataTypeBoolean   DataType = "BOOLEAN"
	DataTypeDate      DataType = "DATE"
	DataTypeDatetime  DataType = "DATETIME"
	DataTypeTimestamp DataType = "TIMESTAMP"
	DataTypeJSON      DataType = "JSON"
)

// ValueTable — в какой из четырёх EAV-таблиц живут значения атрибута.
type ValueTable int

const (
	ValueTableText ValueTable = iota
	ValueTableNumeric
	ValueTableDatetime
	ValueTableBoolean
)

// ValueTable возвращает таблицу значений для типа. ok=false для неизвестного
// типа — такие атрибуты не читаются и не пишутся.
func (d DataType) ValueTable() (ValueTable, bool) {
	switch d {
	case DataTypeVarchar, DataTypeText, DataTypeJSON:
		return ValueTableText, true
	case DataTypeInt, DataTypeBigint, DataTypeDecimal:
		return ValueTableNumeric, true
	case DataTypeDate, DataTypeDatetime, DataTypeTimestamp:
		return ValueTableDatetime, true
	case DataTypeBoolean:
		return ValueTableBoolean, true
	}
	return 0, false
}

func (d DataType) Valid() bool {
	_, ok := d.ValueTable()
	return ok
}

type FormType string

const (
	FormTypeList   FormType = "LIST"
	FormTypeDetail FormType = "DETAIL"
	FormTypeCreate FormType = "CREATE"
	FormTypeEdit   FormType = "EDIT"
	FormTypeSearch FormType = "SEARCH"
)

func (f FormType) Valid() bool {
	switch f {
	case FormTypeList, FormTypeDetail, FormTypeCreate, FormTypeEdit, FormTypeSearch:
		return true
	}
	return false
}

type LayoutType string

const (
	LayoutSingleColumn LayoutType = "SINGLE_COLUMN"
	LayoutTwoColumn    LayoutType = "TWO_COLUMN"
	LayoutThreeColumn  LayoutType = "THREE_COLUMN"
	LayoutTabs         LayoutType = "TABS"
	LayoutAccordion    LayoutType = "ACCORDION"
	LayoutWizard       LayoutType = "WIZARD"
)

// FieldType — виджет на форме; может отличаться от data_type атрибута
// (например SELECT поверх VARCHAR).
type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldTextarea    FieldType = "TEXTAREA"
	FieldNumber      FieldType = "NUMBER"
	FieldDecimal     FieldType = "DECIMAL"
	FieldEmail       FieldType = "EMAIL"
	FieldURL         FieldType = "URL"
	FieldPassword    FieldType = "PASSWORD"
	FieldCheckbox    FieldType = "CHECKBOX"
	FieldRadio       FieldType = "RADIO"
	FieldSelect      FieldType = "SELECT"
	FieldMultiselect FieldType = "MULTISELECT"
	FieldDate        FieldType = "DATE"
	FieldDatetime    FieldType = "DATETIME"
	FieldTime        FieldType = "TIME"
	FieldFile        FieldType = "FILE"
	FieldImage       FieldType = "IMAGE"
	FieldCalculated  FieldType = "CALCULATED"
)

type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpRead   Operation = "READ"
)

// Application — верхний уровень группировки, владеет модулями.
type Application struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
}

// Module — группа entity types внутри приложения; code уникален в рамках
// приложения.
type Module struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	OrderIndex    int       `json:"order_index"`
	IsSystem      bool      `json:"is_system"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
	UpdatedBy     string    `json:"updated_by,omitempty"`
}

// EntityType — динамически определённая «таблица». code уникален в модуле.
type EntityType struct {
	ID              int64     `json:"id"`
	ModuleID        int64     `json:"module_id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	IsMaster        bool      `json:"is_master"`        // справочник
	IsTransactional bool      `json:"is_transactional"` // операционные записи
	Icon            string    `json:"icon,omitempty"`
	OrderIndex      int       `json:"order_index"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CreatedBy       string    `json:"created_by,omitempty"`
	UpdatedBy       string    `json:"updated_by,omitempty"`
}

// AttributeDefinition — одно типизированное поле entity type.
// code уникален в рамках entity type.
type AttributeDefinition struct {
	ID               int64     `json:"id"`
	EntityTypeID     int64     `json:"entity_type_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	DataType         DataType  `json:"data_type"`
	MaxLength        int       `json:"max_length,omitempty"`
	DecimalPrecision int       `json:"decimal_precision,omitempty"`
	DecimalScale     int       `json:"decimal_scale,omitempty"`
	DefaultValue     string    `json:"default_value,omitempty"`
	IsRequired       bool      `json:"is_required"`
	IsUnique         bool      `json:"is_unique"`
	IsIndexed        bool      `json:"is_indexed"`
	ValidationRules  string    `json:"validation_rules,omitempty"` // строка правил, см. internal/rules
	OrderIndex       int       `json:"order_index"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	CreatedBy        string    `json:"created_by,omitempty"`
	UpdatedBy        string    `json:"updated_by,omitempty"`
}

// FormDefinition — одно из представлений LIST/DETAIL/CREATE/EDIT/SEARCH.
// Уникальна по (entity_type, code, form_type).
type FormDefinition struct {
	ID                    int64      `json:"id"`
	EntityTypeID          int64      `json:"entity_type_id"`
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	Description           string     `json:"description,omitempty"`
	FormType              FormType   `json:"form_type"`
	LayoutType            LayoutType `json:"layout_type"`
	RecordsPerPage        int        `json:"records_per_page"`
	AllowInlineEdit       bool       `json:"allow_inline_edit"`
	ShowAttachmentCount   bool       `json:"show_attachment_count"`
	MandatoryConfirmation bool       `json:"mandatory_confirmation"`
	IsDefault             bool       `json:"is_default"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// FormFieldConfiguration привязывает атрибут к форме. Dropdown-поля несут
// ссылки на источник опций; ссылки невладеющие, битая проводка означает
// «без динамических опций», а не ошибку.
type FormFieldConfiguration struct {
	ID                    int64     `json:"id"`
	FormDefinitionID      int64     `json:"form_definition_id"`
	AttributeDefinitionID int64     `json:"attribute_definition_id"`
	FieldLabel            string    `json:"field_label"`
	FieldType             FieldType `json:"field_type"`
	PlaceholderText       string    `json:"placeholder_text,omitempty"`
	HelpText              string    `json:"help_text,omitempty"`
	OrderIndex            int       `json:"order_index"`
	GridColumnSpan        int       `json:"grid_column_span"`
	GridRowSpan           int       `json:"grid_row_span"`
	IsVisible             bool      `json:"is_visible"`
	IsEditable            bool      `json:"is_editable"`
	IsRequired            bool      `json:"is_required"`
	IsSearchable          bool      `json:"is_searchable"`
	IsSortable            bool      `json:"is_sortable"`

	DropdownSourceEntityID     *int64 `json:"dropdown_source_entity_id,omitempty"`
	DropdownSourceAttributeID  *int64 `json:"dropdown_source_attribute_id,omitempty"`
	DropdownDisplayAttributeID *int64 `json:"dropdown_display_attribute_id,omitempty"`
	ShowUniqueValuesOnly       bool   `json:"show_unique_values_only"`

	// Условные правила храним и отдаём как есть; ядро их не исполняет.
	ConditionalVisibilityRules  json.RawMessage `json:"conditional_visibility_rules,omitempty"`
	ConditionalRequirementRules json.RawMessage `json:"conditional_requirement_rules,omitempty"`
	ConditionalEditabilityRules json.RawMessage `json:"conditional_editability_rules,omitempty"`
	ValidationRules             json.RawMessage `json:"validation_rules,omitempty"`
	CSSClasses                  string          `json:"css_classes,omitempty"`
}

// WorkflowState — свободные статусные метки entity type; начальный статус
// проставляется при создании инстанса.
type WorkflowState struct {
	ID           int64  `json:"id"`
	EntityTypeID int64  `json:"entity_type_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	IsInitial    bool   `json:"is_initial"`
	IsFinal      bool   `json:"is_final"`
	Color        string `json:"color,omitempty"`
	OrderIndex   int    `json:"order_index"`
	IsActive     bool   `json:"is_active"`
}

type Role struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsSystem    bool   `json:"is_system"`
	IsActive    bool   `json:"is_active"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// EntityPermission — строка CRUD-матрицы (role, entity_type).
// field/row-level правила — опциональный JSON, ядром не исполняется.
type EntityPermission struct {
	ID                    int64           `json:"id"`
	RoleID                int64           `json:"role_id"`
	EntityTypeID          int64           `json:"entity_type_id"`
	CanRead               bool            `json:"can_read"`
	CanCreate             bool            `json:"can_create"`
	CanUpdate             bool            `json:"can_update"`
	CanDelete             bool            `json:"can_delete"`
	FieldLevelPermissions json.RawMessage `json:"field_level_permissions,omitempty"`
	RowLevelConditions    json.RawMessage `json:"row_level_conditions,omitempty"`
}
