package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// тот же тег, что читает gin при ShouldBindJSON
const bindingTag = "binding"

var structValidator = newStructValidator()

func newStructValidator() *playground.Validate {
	v := playground.New()
	v.SetTagName(bindingTag)
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName имя поля в ошибках берется из тега json
func JSONFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// ValidateStruct проверяет теги binding запроса
func ValidateStruct(req interface{}) error {
	err := structValidator.Struct(req)
	if err == nil {
		return nil
	}

	if msg, ok := DescribeFieldErrors(err); ok {
		return errors.New(msg)
	}
	return err
}

// DescribeFieldErrors текст для ошибок валидации полей, false для прочих ошибок
func DescribeFieldErrors(err error) (string, bool) {
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "", false
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, describeField(fe))
	}
	return strings.Join(parts, "; "), true
}

func describeField(fe playground.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
