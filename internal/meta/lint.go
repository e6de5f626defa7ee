package meta

import "fmt"

type SchemaIssue struct {
	EntityType string `json:"entity_type"`
	Field      string `json:"field"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Lint проверяет базовые противоречия в метаданных. Блокирующих ошибок нет —
// это диагностика для дизайнера, reload проходит в любом случае.
func (r *Registry) Lint() []SchemaIssue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var issues []SchemaIssue

	for _, a := range r.attrs {
		et := r.entityTypes[a.EntityTypeID]
		etCode := fmt.Sprintf("#%d", a.EntityTypeID)
		if et != nil {
			etCode = et.Code
		}

		if !a.DataType.Valid() {
			issues = append(issues, SchemaIssue{
				EntityType: etCode, Field: a.Code, Code: "data_type_unknown",
				Message: fmt.Sprintf("unknown data type %q", a.DataType),
			})
		}
		// required + default — default никогда не сработает на пустом вводе
		if a.IsRequired && a.DefaultValue != "" {
			issues = append(issues, SchemaIssue{
				EntityType: etCode, Field: a.Code, Code: "required_with_default",
				Message: "required attribute carries a default; the default is unreachable",
			})
		}
		if a.DataType == DataTypeVarchar && a.MaxLength <= 0 {
			issues = append(issues, SchemaIssue{
				EntityType: etCode, Field: a.Code, Code: "varchar_no_max_length",
				Message: "VARCHAR attribute without max_length",
			})
		}
	}

	for _, fields := range r.fieldsByForm {
		for _, ff := range fields {
			attr := r.attrs[ff.AttributeDefinitionID]
			label := ff.FieldLabel
			if label == "" && attr != nil {
				label = attr.Code
			}
			etCode := ""
			if form := r.forms[ff.FormDefinitionID]; form != nil {
				if et := r.entityTypes[form.EntityTypeID]; et != nil {
					etCode = et.Code
				}
			}

			isSelect := ff.FieldType == FieldSelect || ff.FieldType == FieldMultiselect
			wired := ff.DropdownSourceEntityID != nil && ff.DropdownSourceAttributeID != nil

			if isSelect && !wired {
				issues = append(issues, SchemaIssue{
					EntityType: etCode, Field: label, Code: "select_without_source",
					Message: "SELECT widget without dropdown wiring; options will be empty",
				})
			}
			// битая проводка — не ошибка на исполнении (деградация до пустого
			// списка), но дизайнеру стоит знать
			if wired {
				if _, ok := r.entityTypes[*ff.DropdownSourceEntityID]; !ok {
					issues = append(issues, SchemaIssue{
						EntityType: etCode, Field: label, Code: "dropdown_entity_missing",
						Message: fmt.Sprintf("dropdown source entity type %d does not exist", *ff.DropdownSourceEntityID),
					})
				}
				if _, ok := r.attrs[*ff.DropdownSourceAttributeID]; !ok {
					issues = append(issues, SchemaIssue{
						EntityType: etCode, Field: label, Code: "dropdown_attribute_missing",
						Message: fmt.Sprintf("dropdown source attribute %d does not exist", *ff.DropdownSourceAttributeID),
					})
				}
			}
		}
	}

	return issues
}
