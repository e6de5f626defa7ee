package pg

// Схема фиксированная: метаданные описывают сущности, но физических таблиц
// под них не создаётся — значения живут в четырёх EAV-таблицах. Весь DDL
// idempotent (create ... if not exists), порядок задаётся префиксами ключей.

// GenerateDDL возвращает карту phase -> SQL; ApplyDDL исполняет по ключам.
func GenerateDDL() map[string]string {
	return map[string]string{
		"000_metadata":  ddlMetadata,
		"100_security":  ddlSecurity,
		"200_instances": ddlInstances,
		"300_values":    ddlValues,
		"400_audit":     ddlAudit,
		"500_orgs":      ddlOrgs,
		"600_indexes":   ddlIndexes,
	}
}

const ddlMetadata = `
create table if not exists applications (
  id bigserial primary key,
  code text not null unique,
  name text not null default '',
  description text not null default '',
  icon text not null default '',
  order_index integer not null default 0,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  created_by text not null default '',
  updated_by text not null default ''
);

create table if not exists modules (
  id bigserial primary key,
  application_id bigint not null references applications(id) on delete cascade,
  code text not null,
  name text not null default '',
  description text not null default '',
  icon text not null default '',
  order_index integer not null default 0,
  is_system boolean not null default false,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  created_by text not null default '',
  updated_by text not null default '',
  unique (application_id, code)
);

create table if not exists entity_types (
  id bigserial primary key,
  module_id bigint not null references modules(id) on delete cascade,
  code text not null,
  name text not null default '',
  description text not null default '',
  is_master boolean not null default false,
  is_transactional boolean not null default false,
  icon text not null default '',
  order_index integer not null default 0,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  created_by text not null default '',
  updated_by text not null default '',
  unique (module_id, code)
);

create table if not exists attribute_definitions (
  id bigserial primary key,
  entity_type_id bigint not null references entity_types(id) on delete cascade,
  code text not null,
  name text not null default '',
  description text not null default '',
  data_type text not null,
  max_length integer not null default 0,
  decimal_precision integer not null default 0,
  decimal_scale integer not null default 0,
  default_value text not null default '',
  is_required boolean not null default false,
  is_unique boolean not null default false,
  is_indexed boolean not null default false,
  validation_rules text not null default '',
  order_index integer not null default 0,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  created_by text not null default '',
  updated_by text not null default '',
  unique (entity_type_id, code)
);

create table if not exists form_definitions (
  id bigserial primary key,
  entity_type_id bigint not null references entity_types(id) on delete cascade,
  code text not null,
  name text not null default '',
  description text not null default '',
  form_type text not null,
  layout_type text not null default 'SINGLE_COLUMN',
  records_per_page integer not null default 10,
  allow_inline_edit boolean not null default false,
  show_attachment_count boolean not null default false,
  mandatory_confirmation boolean not null default false,
  is_default boolean not null default false,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  unique (entity_type_id, code, form_type)
);

create table if not exists form_field_configurations (
  id bigserial primary key,
  form_definition_id bigint not null references form_definitions(id) on delete cascade,
  attribute_definition_id bigint not null references attribute_definitions(id) on delete cascade,
  field_label text not null default '',
  field_type text not null default 'TEXT',
  placeholder_text text not null default '',
  help_text text not null default '',
  order_index integer not null default 0,
  grid_column_span integer not null default 1,
  grid_row_span integer not null default 1,
  is_visible boolean not null default true,
  is_editable boolean not null default true,
  is_required boolean not null default false,
  is_searchable boolean not null default false,
  is_sortable boolean not null default false,
  dropdown_source_entity_id bigint,
  dropdown_source_attribute_id bigint,
  dropdown_display_attribute_id bigint,
  show_unique_values_only boolean not null default false,
  conditional_visibility_rules jsonb,
  conditional_requirement_rules jsonb,
  conditional_editability_rules jsonb,
  validation_rules jsonb,
  css_classes text not null default '',
  unique (form_definition_id, attribute_definition_id)
);

create table if not exists workflow_states (
  id bigserial primary key,
  entity_type_id bigint not null references entity_types(id) on delete cascade,
  code text not null,
  name text not null default '',
  is_initial boolean not null default false,
  is_final boolean not null default false,
  color text not null default '',
  order_index integer not null default 0,
  is_active boolean not null default true,
  unique (entity_type_id, code)
);
`

const ddlSecurity = `
create table if not exists users (
  id bigserial primary key,
  username text not null unique,
  email text not null default '',
  first_name text not null default '',
  last_name text not null default '',
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create table if not exists roles (
  id bigserial primary key,
  code text not null unique,
  name text not null default '',
  description text not null default '',
  is_system boolean not null default false,
  is_active boolean not null default true
);

create table if not exists user_roles (
  user_id bigint not null references users(id) on delete cascade,
  role_id bigint not null references roles(id) on delete cascade,
  primary key (user_id, role_id)
);

create table if not exists entity_permissions (
  id bigserial primary key,
  role_id bigint not null references roles(id) on delete cascade,
  entity_type_id bigint not null references entity_types(id) on delete cascade,
  can_read boolean not null default false,
  can_create boolean not null default false,
  can_update boolean not null default false,
  can_delete boolean not null default false,
  field_level_permissions jsonb,
  row_level_conditions jsonb,
  unique (role_id, entity_type_id)
);
`

const ddlInstances = `
create table if not exists entity_instances (
  id bigserial primary key,
  entity_type_id bigint not null references entity_types(id) on delete restrict,
  instance_code text not null unique,
  status text not null default '',
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now(),
  created_by text not null default '',
  updated_by text not null default ''
);
`

// Четыре типизированные таблицы значений. on delete restrict со стороны
// определения атрибута: сначала значения, потом определение.
const ddlValues = `
create table if not exists attribute_values_text (
  id bigserial primary key,
  entity_instance_id bigint not null references entity_instances(id) on delete cascade,
  attribute_definition_id bigint not null references attribute_definitions(id) on delete restrict,
  value text not null,
  unique (entity_instance_id, attribute_definition_id)
);

create table if not exists attribute_values_numeric (
  id bigserial primary key,
  entity_instance_id bigint not null references entity_instances(id) on delete cascade,
  attribute_definition_id bigint not null references attribute_definitions(id) on delete restrict,
  value numeric(20,6) not null,
  unique (entity_instance_id, attribute_definition_id)
);

create table if not exists attribute_values_datetime (
  id bigserial primary key,
  entity_instance_id bigint not null references entity_instances(id) on delete cascade,
  attribute_definition_id bigint not null references attribute_definitions(id) on delete restrict,
  value timestamptz not null,
  unique (entity_instance_id, attribute_definition_id)
);

create table if not exists attribute_values_boolean (
  id bigserial primary key,
  entity_instance_id bigint not null references entity_instances(id) on delete cascade,
  attribute_definition_id bigint not null references attribute_definitions(id) on delete restrict,
  value boolean not null,
  unique (entity_instance_id, attribute_definition_id)
);
`

// audit_log без FK: журнал переживает физическое удаление записей.
const ddlAudit = `
create table if not exists audit_log (
  id bigserial primary key,
  entity_type_id bigint not null,
  entity_instance_id bigint not null,
  operation text not null,
  changed_by text not null default '',
  old_values jsonb,
  new_values jsonb,
  ip_address text not null default '',
  user_agent text not null default '',
  created_at timestamptz not null default now()
);
`

const ddlOrgs = `
create table if not exists organizational_units (
  id bigserial primary key,
  parent_unit_id bigint references organizational_units(id) on delete set null,
  code text not null unique,
  name text not null default '',
  unit_type text not null default '',
  description text not null default '',
  level_order integer not null default 0,
  is_active boolean not null default true,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const ddlIndexes = `
create index if not exists entity_instances_type_idx
  on entity_instances(entity_type_id, is_active);
create index if not exists attribute_values_text_attr_idx
  on attribute_values_text(attribute_definition_id);
create index if not exists attribute_values_numeric_attr_idx
  on attribute_values_numeric(attribute_definition_id);
create index if not exists attribute_values_datetime_attr_idx
  on attribute_values_datetime(attribute_definition_id);
create index if not exists attribute_values_boolean_attr_idx
  on attribute_values_boolean(attribute_definition_id);
create index if not exists audit_log_instance_idx
  on audit_log(entity_instance_id);
create index if not exists audit_log_created_idx
  on audit_log(created_at);
create index if not exists organizational_units_parent_idx
  on organizational_units(parent_unit_id);
`
