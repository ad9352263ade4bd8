// Package patch overlays partial JSON updates onto stored entities.
//
// Each entity has an explicit schema: a set of protected keys that are always
// refused, a set of writable keys with typed setters, the identity fields that
// survive any patch, and a validator for the merged result. Merge never
// mutates its input and never persists anything.
package patch

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Mishari713/BMS/apperrors"
)

// Patch is a decoded JSON object. Numbers arrive as float64 or json.Number.
type Patch map[string]any

// Has reports whether key is present in the patch.
func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Setter writes one patch value into the entity.
type Setter[T any] func(entity *T, value any) error

// Schema describes how patches apply to T.
type Schema[T any] struct {
	// Protected maps a refused key to the message reported for it, built
	// from the stored entity.
	Protected map[string]func(existing T) string
	Fields    map[string]Setter[T]
	// Clone deep-copies the parts of T that setters replace. Optional.
	Clone func(T) T
	// Restore copies identity and ownership fields from the original.
	Restore  func(merged *T, original T)
	Validate func(*T) error
}

// Merge applies p to a copy of existing and returns the validated result.
func (s *Schema[T]) Merge(existing T, p Patch) (T, error) {
	var zero T

	for _, key := range sortedKeys(p) {
		if message, ok := s.Protected[key]; ok {
			return zero, apperrors.BadRequest("%s", message(existing))
		}
	}
	for _, key := range sortedKeys(p) {
		if _, ok := s.Fields[key]; !ok {
			return zero, apperrors.BadRequest("Unknown field '%s'", key)
		}
	}

	merged := existing
	if s.Clone != nil {
		merged = s.Clone(existing)
	}
	for _, key := range sortedKeys(p) {
		if err := s.Fields[key](&merged, p[key]); err != nil {
			return zero, err
		}
	}
	if s.Restore != nil {
		s.Restore(&merged, existing)
	}
	if s.Validate != nil {
		if err := s.Validate(&merged); err != nil {
			return zero, err
		}
	}
	return merged, nil
}

func sortedKeys(p Patch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringField builds a setter for a string-valued key.
func StringField[T any](key string, set func(*T, string)) Setter[T] {
	return func(entity *T, value any) error {
		s, ok := value.(string)
		if !ok {
			return apperrors.BadRequest("Field '%s' must be a string", key)
		}
		set(entity, s)
		return nil
	}
}

// StringListField builds a setter for a key holding an array of strings.
func StringListField[T any](key string, set func(*T, []string)) Setter[T] {
	return func(entity *T, value any) error {
		var out []string
		switch v := value.(type) {
		case []string:
			out = append(out, v...)
		case []any:
			out = make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return apperrors.BadRequest("Field '%s' must be an array of strings", key)
				}
				out = append(out, s)
			}
		default:
			return apperrors.BadRequest("Field '%s' must be an array of strings", key)
		}
		set(entity, out)
		return nil
	}
}

// Required fails when value is blank or longer than max runes (max <= 0
// disables the length check).
func Required(key, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.BadRequest("Field '%s' must not be blank", key)
	}
	if max > 0 && utf8.RuneCountInString(value) > max {
		return apperrors.BadRequest("Field '%s' must be at most %d characters", key, max)
	}
	return nil
}

// protectedID reports the id of the stored entity, never the one sent.
func protectedID[T any](entity string, id func(T) uint) func(T) string {
	return func(existing T) string {
		return fmt.Sprintf("%s id is not allowed in request body - %d", entity, id(existing))
	}
}
