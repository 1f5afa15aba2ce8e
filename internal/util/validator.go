package util

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator devolve a instância compartilhada com as regras customizadas registradas.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
			return ValidateCPF(SanitizeCPF(fl.Field().String()))
		})
		_ = validate.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return len(v) == 2 && strings.ToUpper(v) == v
		})
	})
	return validate
}

// ValidateStruct aplica as tags `validate` e devolve os problemas por campo.
func ValidateStruct(v any) map[string][]string {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string][]string{"_": {err.Error()}}
	}

	problems := map[string][]string{}
	for _, fe := range ve {
		field := fe.Field()
		problems[field] = append(problems[field], describe(fe))
	}
	return problems
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "min":
		return "valor muito curto, mínimo: " + fe.Param()
	case "max":
		return "valor muito longo, máximo: " + fe.Param()
	case "email":
		return "e-mail inválido"
	case "cpf":
		return "CPF inválido"
	case "oneof":
		return "valor deve ser um de: " + fe.Param()
	case "uf":
		return "UF deve ter 2 letras maiúsculas"
	case "gt":
		return "valor deve ser maior que " + fe.Param()
	default:
		return "valor inválido"
	}
}

// ValidationError carrega problemas por campo e vira 400 VALIDATION na API.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, problems := range e.Fields {
		parts = append(parts, field+": "+strings.Join(problems, ", "))
	}
	sort.Strings(parts)
	return "dados inválidos: " + strings.Join(parts, "; ")
}

// Invalid cria ValidationError para um único campo.
func Invalid(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {problem}}}
}

// Validate aplica ValidateStruct e devolve *ValidationError quando houver problemas.
func Validate(v any) error {
	if problems := ValidateStruct(v); len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}
