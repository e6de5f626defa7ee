package meta

import (
	"sort"
	"strings"
	"sync"
)

type attrKey struct {
	entityTypeID int64
	code         string
}

// Snapshot — полный слепок метаданных, как он прочитан из таблиц.
type Snapshot struct {
	Applications []*Application
	Modules      []*Module
	EntityTypes  []*EntityType
	Attributes   []*AttributeDefinition
	Forms        []*FormDefinition
	FormFields   []*FormFieldConfiguration
	States       []*WorkflowState
}

// Registry — явная конфигурационная структура вместо глобального словаря:
// грузится из метаданных на старте, передаётся по ссылке, подменяется целиком
// под write-lock при reload.
type Registry struct {
	mu sync.RWMutex

	apps        map[int64]*Application
	modules     map[int64]*Module
	entityTypes map[int64]*EntityType

	modulesByApp  map[int64][]*Module
	typesByModule map[int64][]*EntityType
	typeByCode    map[attrKey]*EntityType // ключ: (moduleID, code), регистронезависимо

	attrs         map[int64]*AttributeDefinition
	attrsByEntity map[int64][]*AttributeDefinition
	attrByCode    map[attrKey]*AttributeDefinition

	forms        map[int64]*FormDefinition
	formsByType  map[int64][]*FormDefinition
	fieldsByForm map[int64][]*FormFieldConfiguration

	statesByEntity map[int64][]*WorkflowState
}

func NewRegistry(s *Snapshot) *Registry {
	r := &Registry{}
	r.Replace(s)
	return r
}

// Replace атомарно подменяет всё содержимое реестра новым слепком.
func (r *Registry) Replace(s *Snapshot) {
	apps := make(map[int64]*Application, len(s.Applications))
	for _, a := range s.Applications {
		apps[a.ID] = a
	}

	modules := make(map[int64]*Module, len(s.Modules))
	modulesByApp := make(map[int64][]*Module)
	for _, m := range s.Modules {
		modules[m.ID] = m
		modulesByApp[m.ApplicationID] = append(modulesByApp[m.ApplicationID], m)
	}
	for _, list := range modulesByApp {
		sortByOrder(list, func(m *Module) (int, int64) { return m.OrderIndex, m.ID })
	}

	entityTypes := make(map[int64]*EntityType, len(s.EntityTypes))
	typesByModule := make(map[int64][]*EntityType)
	typeByCode := make(map[attrKey]*EntityType, len(s.EntityTypes))
	for _, et := range s.EntityTypes {
		entityTypes[et.ID] = et
		typesByModule[et.ModuleID] = append(typesByModule[et.ModuleID], et)
		typeByCode[attrKey{et.ModuleID, strings.ToUpper(et.Code)}] = et
	}
	for _, list := range typesByModule {
		sortByOrder(list, func(et *EntityType) (int, int64) { return et.OrderIndex, et.ID })
	}

	attrs := make(map[int64]*AttributeDefinition, len(s.Attributes))
	attrsByEntity := make(map[int64][]*AttributeDefinition)
	attrByCode := make(map[attrKey]*AttributeDefinition, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[a.ID] = a
		attrsByEntity[a.EntityTypeID] = append(attrsByEntity[a.EntityTypeID], a)
		attrByCode[attrKey{a.EntityTypeID, strings.ToUpper(a.Code)}] = a
	}
	for _, list := range attrsByEntity {
		sortByOrder(list, func(a *AttributeDefinition) (int, int64) { return a.OrderIndex, a.ID })
	}

	forms := make(map[int64]*FormDefinition, len(s.Forms))
	formsByType := make(map[int64][]*FormDefinition)
	for _, f := range s.Forms {
		forms[f.ID] = f
		formsByType[f.EntityTypeID] = append(formsByType[f.EntityTypeID], f)
	}

	fieldsByForm := make(map[int64][]*FormFieldConfiguration)
	for _, ff := range s.FormFields {
		fieldsByForm[ff.FormDefinitionID] = append(fieldsByForm[ff.FormDefinitionID], ff)
	}
	for _, list := range fieldsByForm {
		// порядок: order_index, тай-брейк по id атрибута — детерминизм
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].OrderIndex != list[j].OrderIndex {
				return list[i].OrderIndex < list[j].OrderIndex
			}
			return list[i].AttributeDefinitionID < list[j].AttributeDefinitionID
		})
	}

	statesByEntity := make(map[int64][]*WorkflowState)
	for _, ws := range s.States {
		statesByEntity[ws.EntityTypeID] = append(statesByEntity[ws.EntityTypeID], ws)
	}
	for _, list := range statesByEntity {
		sortByOrder(list, func(ws *WorkflowState) (int, int64) { return ws.OrderIndex, ws.ID })
	}

	r.mu.Lock()
	r.apps = apps
	r.modules = modules
	r.modulesByApp = modulesByApp
	r.entityTypes = entityTypes
	r.typesByModule = typesByModule
	r.typeByCode = typeByCode
	r.attrs = attrs
	r.attrsByEntity = attrsByEntity
	r.attrByCode = attrByCode
	r.forms = forms
	r.formsByType = formsByType
	r.fieldsByForm = fieldsByForm
	r.statesByEntity = statesByEntity
	r.mu.Unlock()
}

func sortByOrder[T any](list []T, key func(T) (int, int64)) {
	sort.SliceStable(list, func(i, j int) bool {
		oi, idi := key(list[i])
		oj, idj := key(list[j])
		if oi != oj {
			return oi < oj
		}
		return idi < idj
	})
}

func (r *Registry) Application(id int64) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	return a, ok
}

func (r *Registry) Applications() []*Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Application, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	sortByOrder(out, func(a *Application) (int, int64) { return a.OrderIndex, a.ID })
	return out
}

func (r *Registry) Module(id int64) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

func (r *Registry) ModulesOf(applicationID int64) []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Module(nil), r.modulesByApp[applicationID]...)
}

func (r *Registry) EntityType(id int64) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entityTypes[id]
	return et, ok
}

// EntityTypeByCode — явное разрешение по (module, code) вместо пробинга.
func (r *Registry) EntityTypeByCode(moduleID int64, code string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.typeByCode[attrKey{moduleID, strings.ToUpper(strings.TrimSpace(code))}]
	return et, ok
}

// EntityTypesOf — активные entity types модуля в сконфигурированном порядке.
func (r *Registry) EntityTypesOf(moduleID int64) []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*EntityType
	for _, et := range r.typesByModule[moduleID] {
		if et.IsActive {
			out = append(out, et)
		}
	}
	return out
}

func (r *Registry) Attribute(id int64) (*AttributeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attrs[id]
	return a, ok
}

// AttributeByCode — неизвестный код это типизированное "не нашли",
// а не тихий attribute error.
func (r *Registry) AttributeByCode(entityTypeID int64, code string) (*AttributeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attrByCode[attrKey{entityTypeID, strings.ToUpper(strings.TrimSpace(code))}]
	return a, ok
}

// Attributes — активные определения атрибутов entity type, по order_index.
func (r *Registry) Attributes(entityTypeID int64) []*AttributeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AttributeDefinition
	for _, a := range r.attrsByEntity[entityTypeID] {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) Form(id int64) (*FormDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[id]
	return f, ok
}

// FormFor — активная форма заданного типа; is_default выигрывает при
// нескольких кандидатах.
func (r *Registry) FormFor(entityTypeID int64, ft FormType) (*FormDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *FormDefinition
	for _, f := range r.formsByType[entityTypeID] {
		if !f.IsActive || f.FormType != ft {
			continue
		}
		if f.IsDefault {
			return f, true
		}
		if found == nil {
			found = f
		}
	}
	return found, found != nil
}

// Fields — конфигурации полей формы в детерминированном порядке.
func (r *Registry) Fields(formID int64) []*FormFieldConfiguration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*FormFieldConfiguration(nil), r.fieldsByForm[formID]...)
}

// InitialState — начальный workflow-статус entity type, если настроен.
func (r *Registry) InitialState(entityTypeID int64) (*WorkflowState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ws := range r.statesByEntity[entityTypeID] {
		if ws.IsActive && ws.IsInitial {
			return ws, true
		}
	}
	return nil, false
}

func (r *Registry) States(entityTypeID int64) []*WorkflowState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*WorkflowState(nil), r.statesByEntity[entityTypeID]...)
}
