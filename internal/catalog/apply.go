package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Apply накатывает каталог в таблицы метаданных: upsert по кодам, повторный
// прогон того же каталога ничего не меняет. Возвращает ошибку первой
// несостыковки — каталог должен быть целостным.
func Apply(ctx context.Context, db *sql.DB, c *Catalog, log zerolog.Logger) error {
	log = log.With().Str("component", "catalog").Logger()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	roleIDs := make(map[string]int64, len(c.Roles))
	for _, r := range c.Roles {
		var id int64
		err := tx.QueryRowContext(ctx, `
			insert into roles (code, name, description, is_system, is_active)
			values ($1, $2, $3, $4, true)
			on conflict (code) do update set name = excluded.name, description = excluded.description
			returning id`,
			strings.ToUpper(r.Code), r.Name, r.Description, r.System).Scan(&id)
		if err != nil {
			return fmt.Errorf("role %s: %w", r.Code, err)
		}
		roleIDs[strings.ToUpper(r.Code)] = id
	}

	// (module.entity) -> entity_type id, для проводки dropdown'ов и прав
	entityIDs := make(map[string]int64)
	// (module.entity.attribute) -> attribute id
	attrIDs := make(map[string]int64)

	for _, app := range c.Applications {
		var appID int64
		err := tx.QueryRowContext(ctx, `
			insert into applications (code, name, description, icon, order_index, is_active)
			values ($1, $2, $3, $4, $5, true)
			on conflict (code) do update set name = excluded.name, description = excluded.description,
				icon = excluded.icon, order_index = excluded.order_index, updated_at = now()
			returning id`,
			strings.ToUpper(app.Code), app.Name, app.Description, app.Icon, app.Order).Scan(&appID)
		if err != nil {
			return fmt.Errorf("application %s: %w", app.Code, err)
		}

		for _, mod := range app.Modules {
			var modID int64
			err := tx.QueryRowContext(ctx, `
				insert into modules (application_id, code, name, description, icon, order_index, is_active)
				values ($1, $2, $3, $4, $5, $6, true)
				on conflict (application_id, code) do update set name = excluded.name,
					description = excluded.description, icon = excluded.icon,
					order_index = excluded.order_index, updated_at = now()
				returning id`,
				appID, strings.ToUpper(mod.Code), mod.Name, mod.Description, mod.Icon, mod.Order).Scan(&modID)
			if err != nil {
				return fmt.Errorf("module %s: %w", mod.Code, err)
			}

			for _, ent := range mod.Entities {
				etKey := strings.ToUpper(mod.Code + "." + ent.Code)
				var etID int64
				err := tx.QueryRowContext(ctx, `
					insert into entity_types (module_id, code, name, description, is_master,
						is_transactional, order_index, is_active)
					values ($1, $2, $3, $4, $5, $6, $7, true)
					on conflict (module_id, code) do update set name = excluded.name,
						description = excluded.description, is_master = excluded.is_master,
						is_transactional = excluded.is_transactional,
						order_index = excluded.order_index, updated_at = now()
					returning id`,
					modID, strings.ToUpper(ent.Code), ent.Name, ent.Description,
					ent.Master, ent.Transactional, ent.Order).Scan(&etID)
				if err != nil {
					return fmt.Errorf("entity %s: %w", etKey, err)
				}
				entityIDs[etKey] = etID

				for _, attr := range ent.Attributes {
					var attrID int64
					err := tx.QueryRowContext(ctx, `
						insert into attribute_definitions (entity_type_id, code, name, data_type,
							max_length, decimal_precision, decimal_scale, default_value,
							is_required, is_unique, is_indexed, validation_rules, order_index, is_active)
						values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true)
						on conflict (entity_type_id, code) do update set name = excluded.name,
							data_type = excluded.data_type, max_length = excluded.max_length,
							decimal_precision = excluded.decimal_precision,
							decimal_scale = excluded.decimal_scale,
							default_value = excluded.default_value,
							is_required = excluded.is_required, is_unique = excluded.is_unique,
							is_indexed = excluded.is_indexed,
							validation_rules = excluded.validation_rules,
							order_index = excluded.order_index, updated_at = now()
						returning id`,
						etID, strings.ToUpper(attr.Code), attr.Name, strings.ToUpper(attr.Type),
						attr.MaxLength, attr.Precision, attr.Scale, attr.Default,
						attr.Required, attr.Unique, attr.Indexed, attr.Rules, attr.Order).Scan(&attrID)
					if err != nil {
						return fmt.Errorf("attribute %s.%s: %w", etKey, attr.Code, err)
					}
					attrIDs[etKey+"."+strings.ToUpper(attr.Code)] = attrID
				}

				for _, st := range ent.States {
					_, err := tx.ExecContext(ctx, `
						insert into workflow_states (entity_type_id, code, name, is_initial,
							is_final, color, order_index, is_active)
						values ($1, $2, $3, $4, $5, $6, $7, true)
						on conflict (entity_type_id, code) do update set name = excluded.name,
							is_initial = excluded.is_initial, is_final = excluded.is_final,
							color = excluded.color, order_index = excluded.order_index`,
						etID, strings.ToUpper(st.Code), st.Name, st.Initial, st.Final, st.Color, st.Order)
					if err != nil {
						return fmt.Errorf("state %s.%s: %w", etKey, st.Code, err)
					}
				}

				for _, p := range ent.Permissions {
					roleID, ok := roleIDs[strings.ToUpper(p.Role)]
					if !ok {
						return fmt.Errorf("entity %s: unknown role %q in permissions", etKey, p.Role)
					}
					crud := strings.ToLower(p.CRUD)
					_, err := tx.ExecContext(ctx, `
						insert into entity_permissions (role_id, entity_type_id,
							can_create, can_read, can_update, can_delete)
						values ($1, $2, $3, $4, $5, $6)
						on conflict (role_id, entity_type_id) do update set
							can_create = excluded.can_create, can_read = excluded.can_read,
							can_update = excluded.can_update, can_delete = excluded.can_delete`,
						roleID, etID,
						strings.Contains(crud, "c"), strings.Contains(crud, "r"),
						strings.Contains(crud, "u"), strings.Contains(crud, "d"))
					if err != nil {
						return fmt.Errorf("permission %s/%s: %w", etKey, p.Role, err)
					}
				}
			}
		}
	}

	// формы — вторым проходом: dropdown'ы могут ссылаться на сущности из
	// других модулей
	for _, app := range c.Applications {
		for _, mod := range app.Modules {
			for _, ent := range mod.Entities {
				etKey := strings.ToUpper(mod.Code + "." + ent.Code)
				etID := entityIDs[etKey]
				for _, form := range ent.Forms {
					if err := applyForm(ctx, tx, etKey, etID, form, entityIDs, attrIDs); err != nil {
						return err
					}
				}
			}
		}
	}

	for _, u := range c.Users {
		var userID int64
		err := tx.QueryRowContext(ctx, `
			insert into users (username, email, first_name, last_name, is_active)
			values ($1, $2, $3, $4, true)
			on conflict (username) do update set email = excluded.email,
				first_name = excluded.first_name, last_name = excluded.last_name,
				updated_at = now()
			returning id`,
			u.Username, u.Email, u.FirstName, u.LastName).Scan(&userID)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		for _, role := range u.Roles {
			roleID, ok := roleIDs[strings.ToUpper(role)]
			if !ok {
				return fmt.Errorf("user %s: unknown role %q", u.Username, role)
			}
			_, err := tx.ExecContext(ctx, `
				insert into user_roles (user_id, role_id) values ($1, $2)
				on conflict do nothing`, userID, roleID)
			if err != nil {
				return fmt.Errorf("user %s: %w", u.Username, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().Int("applications", len(c.Applications)).Int("roles", len(c.Roles)).
		Int("users", len(c.Users)).Msg("catalog applied")
	return nil
}

func applyForm(ctx context.Context, tx *sql.Tx, etKey string, etID int64, form FormSpec, entityIDs, attrIDs map[string]int64) error {
	layout := strings.ToUpper(form.Layout)
	if layout == "" {
		layout = "SINGLE_COLUMN"
	}
	rpp := form.RecordsPerPage
	if rpp <= 0 {
		rpp = 10
	}
	var formID int64
	err := tx.QueryRowContext(ctx, `
		insert into form_definitions (entity_type_id, code, name, form_type, layout_type,
			records_per_page, is_default, is_active)
		values ($1, $2, $3, $4, $5, $6, $7, true)
		on conflict (entity_type_id, code, form_type) do update set name = excluded.name,
			layout_type = excluded.layout_type, records_per_page = excluded.records_per_page,
			is_default = excluded.is_default, updated_at = now()
		returning id`,
		etID, strings.ToUpper(form.Code), form.Name, strings.ToUpper(form.Type),
		layout, rpp, form.Default).Scan(&formID)
	if err != nil {
		return fmt.Errorf("form %s.%s: %w", etKey, form.Code, err)
	}

	for _, ff := range form.Fields {
		attrID, ok := attrIDs[etKey+"."+strings.ToUpper(ff.Attribute)]
		if !ok {
			return fmt.Errorf("form %s.%s: unknown attribute %q", etKey, form.Code, ff.Attribute)
		}
		widget := strings.ToUpper(ff.Widget)
		if widget == "" {
			widget = "TEXT"
		}
		visible := ff.Visible == nil || *ff.Visible
		editable := ff.Editable == nil || *ff.Editable

		var dropEntity, dropAttr, dropDisplay any
		if ff.DropdownEntity != "" {
			srcKey := strings.ToUpper(ff.DropdownEntity)
			srcID, ok := entityIDs[srcKey]
			if !ok {
				return fmt.Errorf("form %s.%s: unknown dropdown entity %q", etKey, form.Code, ff.DropdownEntity)
			}
			dropEntity = srcID
			if ff.DropdownAttribute != "" {
				id, ok := attrIDs[srcKey+"."+strings.ToUpper(ff.DropdownAttribute)]
				if !ok {
					return fmt.Errorf("form %s.%s: unknown dropdown attribute %q", etKey, form.Code, ff.DropdownAttribute)
				}
				dropAttr = id
			}
			if ff.DropdownDisplay != "" {
				id, ok := attrIDs[srcKey+"."+strings.ToUpper(ff.DropdownDisplay)]
				if !ok {
					return fmt.Errorf("form %s.%s: unknown dropdown display attribute %q", etKey, form.Code, ff.DropdownDisplay)
				}
				dropDisplay = id
			}
		}

		_, err := tx.ExecContext(ctx, `
			insert into form_field_configurations (form_definition_id, attribute_definition_id,
				field_label, field_type, placeholder_text, help_text, order_index,
				is_visible, is_editable, is_required, is_searchable, is_sortable,
				dropdown_source_entity_id, dropdown_source_attribute_id,
				dropdown_display_attribute_id, show_unique_values_only)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			on conflict (form_definition_id, attribute_definition_id) do update set
				field_label = excluded.field_label, field_type = excluded.field_type,
				placeholder_text = excluded.placeholder_text, help_text = excluded.help_text,
				order_index = excluded.order_index, is_visible = excluded.is_visible,
				is_editable = excluded.is_editable, is_required = excluded.is_required,
				is_searchable = excluded.is_searchable, is_sortable = excluded.is_sortable,
				dropdown_source_entity_id = excluded.dropdown_source_entity_id,
				dropdown_source_attribute_id = excluded.dropdown_source_attribute_id,
				dropdown_display_attribute_id = excluded.dropdown_display_attribute_id,
				show_unique_values_only = excluded.show_unique_values_only`,
			formID, attrID, ff.Label, widget, ff.Placeholder, ff.Help, ff.Order,
			visible, editable, ff.Required, ff.Searchable, ff.Sortable,
			dropEntity, dropAttr, dropDisplay, ff.UniqueOnly)
		if err != nil {
			return fmt.Errorf("form field %s.%s/%s: %w", etKey, form.Code, ff.Attribute, err)
		}
	}
	return nil
}
