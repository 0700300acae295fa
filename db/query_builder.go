package db

import (
	"fmt"
	"strconv"
	"strings"
)

type QueryBuilder struct {
	strings.Builder
}

func (builder *QueryBuilder) WriteInt(i int) {
	builder.WriteString(strconv.Itoa(i))
}

func (builder *QueryBuilder) WriteFloat(f float64) {
	builder.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

// Must only be called after calling ValidateIdentifier/ValidateIdentifiers on the given identifier.
func (builder *QueryBuilder) WriteIdentifier(identifier string) {
	builder.WriteRune('`')
	builder.WriteString(identifier)
	builder.WriteRune('`')
}

func (builder *QueryBuilder) WriteStringLiteral(literal string) {
	builder.WriteRune('\'')
	for _, character := range literal {
		if character == '\'' || character == '\\' {
			builder.WriteRune('\\')
		}
		builder.WriteRune(character)
	}
	builder.WriteRune('\'')
}

func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is blank")
	}
	if strings.ContainsRune(identifier, '`') {
		return fmt.Errorf("'%s' contains `, which is incompatible with database", identifier)
	}

	return nil
}

func ValidateIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if err := ValidateIdentifier(identifier); err != nil {
			return err
		}
	}

	return nil
}
