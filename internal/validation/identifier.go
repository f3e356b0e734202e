package validation

import (
	"fmt"
	"regexp"
)

// IdentifierPattern определяет допустимый формат идентификаторов сущностей и полей
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_) и дефис (-)
// Длина: 1-64 символа
var IdentifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// MaxIdentifierLen максимальная длина идентификатора
	MaxIdentifierLen = 64
)

// ValidateIdentifier checks an entity or field identifier. Identifiers end up
// in URL paths and draft keys (draft:{entity}:{field}), so ':' and '/' are not allowed.
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", kind)
	}

	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("%s id must not exceed %d characters", kind, MaxIdentifierLen)
	}

	if !IdentifierPattern.MatchString(id) {
		return fmt.Errorf("%s id can only contain letters (a-z, A-Z), numbers (0-9), underscores (_) and dashes (-)", kind)
	}

	return nil
}

// ValidateKey проверяет пару идентификаторов поля
func ValidateKey(entityID, fieldID string) error {
	if err := ValidateIdentifier("entity", entityID); err != nil {
		return err
	}
	return ValidateIdentifier("field", fieldID)
}
