// Package catalog — YAML-каталог схемы: декларативное описание приложений,
// модулей, сущностей, форм и ролей, накатываемое в метаданные на старте.
package catalog

// Catalog — содержимое одного YAML-файла каталога.
type Catalog struct {
	Applications []AppSpec  `yaml:"applications"`
	Roles        []RoleSpec `yaml:"roles"`
	Users        []UserSpec `yaml:"users"`
}

type AppSpec struct {
	Code        string       `yaml:"code"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Icon        string       `yaml:"icon,omitempty"`
	Order       int          `yaml:"order,omitempty"`
	Modules     []ModuleSpec `yaml:"modules"`
}

type ModuleSpec struct {
	Code        string       `yaml:"code"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Icon        string       `yaml:"icon,omitempty"`
	Order       int          `yaml:"order,omitempty"`
	Entities    []EntitySpec `yaml:"entities"`
}

type EntitySpec struct {
	Code          string          `yaml:"code"`
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description,omitempty"`
	Master        bool            `yaml:"master,omitempty"`
	Transactional bool            `yaml:"transactional,omitempty"`
	Order         int             `yaml:"order,omitempty"`
	Attributes    []AttributeSpec `yaml:"attributes"`
	Forms         []FormSpec      `yaml:"forms,omitempty"`
	States        []StateSpec     `yaml:"states,omitempty"`
	Permissions   []PermSpec      `yaml:"permissions,omitempty"`
}

type AttributeSpec struct {
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	MaxLength int    `yaml:"max_length,omitempty"`
	Precision int    `yaml:"precision,omitempty"`
	Scale     int    `yaml:"scale,omitempty"`
	Default   string `yaml:"default,omitempty"`
	Required  bool   `yaml:"required,omitempty"`
	Unique    bool   `yaml:"unique,omitempty"`
	Indexed   bool   `yaml:"indexed,omitempty"`
	Rules     string `yaml:"rules,omitempty"`
	Order     int    `yaml:"order,omitempty"`
}

type FormSpec struct {
	Code           string          `yaml:"code"`
	Name           string          `yaml:"name"`
	Type           string          `yaml:"type"`
	Layout         string          `yaml:"layout,omitempty"`
	RecordsPerPage int             `yaml:"records_per_page,omitempty"`
	Default        bool            `yaml:"default,omitempty"`
	Fields         []FormFieldSpec `yaml:"fields"`
}

type FormFieldSpec struct {
	Attribute   string `yaml:"attribute"`
	Label       string `yaml:"label,omitempty"`
	Widget      string `yaml:"widget,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
	Help        string `yaml:"help,omitempty"`
	Order       int    `yaml:"order,omitempty"`
	Visible     *bool  `yaml:"visible,omitempty"`
	Editable    *bool  `yaml:"editable,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Searchable  bool   `yaml:"searchable,omitempty"`
	Sortable    bool   `yaml:"sortable,omitempty"`

	DropdownEntity    string `yaml:"dropdown_entity,omitempty"` // "MODULE.ENTITY"
	DropdownAttribute string `yaml:"dropdown_attribute,omitempty"`
	DropdownDisplay   string `yaml:"dropdown_display,omitempty"`
	UniqueOnly        bool   `yaml:"unique_only,omitempty"`
}

type StateSpec struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Initial bool   `yaml:"initial,omitempty"`
	Final   bool   `yaml:"final,omitempty"`
	Color   string `yaml:"color,omitempty"`
	Order   int    `yaml:"order,omitempty"`
}

// PermSpec — строка CRUD-матрицы для роли, crud в духе "crud" / "r" / "cru".
type PermSpec struct {
	Role string `yaml:"role"`
	CRUD string `yaml:"crud"`
}

type RoleSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	System      bool   `yaml:"system,omitempty"`
}

type UserSpec struct {
	Username  string   `yaml:"username"`
	Email     string   `yaml:"email,omitempty"`
	FirstName string   `yaml:"first_name,omitempty"`
	LastName  string   `yaml:"last_name,omitempty"`
	Roles     []string `yaml:"roles,omitempty"`
}
