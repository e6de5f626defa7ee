package apperr

import "fmt"

// Таксономия ошибок ядра. На границе API маппится в FieldError-ответы,
// внутри — обычные errors.As.

// ValidationError — обязательное поле отсутствует, некоэрсируемое значение,
// дубликат по unique-атрибуту. Всегда несёт код атрибута.
type ValidationError struct {
	Attribute string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Attribute, e.Reason)
}

func Validation(attribute, reason string) *ValidationError {
	return &ValidationError{Attribute: attribute, Reason: reason}
}

// NotFoundError — неизвестный entity type / instance / form / attribute.
type NotFoundError struct {
	Kind string // "entity type", "instance", "form", "attribute", "user"
	Ref  any    // id или код
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.Ref)
}

func NotFound(kind string, ref any) *NotFoundError {
	return &NotFoundError{Kind: kind, Ref: ref}
}

// PermissionError — операция без нужной привилегии. Проверяется ДО любой
// мутации, чтобы не оставлять частичных записей.
type PermissionError struct {
	Operation    string
	EntityTypeID int64
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("operation %s denied on entity type %d", e.Operation, e.EntityTypeID)
}

// IntegrityError — удаление метаданных, на которые ещё ссылаются данные.
type IntegrityError struct {
	Kind       string
	Ref        any
	Dependents int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %v still referenced by %d dependent row(s)", e.Kind, e.Ref, e.Dependents)
}

// StoreError — непредвиденный отказ хранилища; наружу уходит generic failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure in %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func Store(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
