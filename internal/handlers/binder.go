package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/rpc"
	"github.com/go-playground/validator/v10"
)

// Binder decodes message payloads into request structs and validates them.
// Unknown properties are rejected.
type Binder struct {
	validate *validator.Validate
}

// NewBinder creates a Binder that reports fields by their json names.
func NewBinder() *Binder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return &Binder{validate: v}
}

// Bind fills dst from payload. Failures are returned as 400 envelopes.
func (b *Binder) Bind(payload json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = json.RawMessage("{}")
	}

	if err := checkProperties(payload, dst); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return rpc.BadRequest(decodeMessage(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return rpc.BadRequest("Invalid request payload")
	}

	if err := b.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return rpc.BadRequest(validationMessage(verrs))
		}
		return rpc.BadRequest(err.Error())
	}
	return nil
}

// checkProperties rejects keys that do not exactly match a json field name
// of dst. encoding/json alone would accept "EMAIL" for "email".
func checkProperties(payload json.RawMessage, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil
	}

	allowed := jsonFieldNames(reflect.TypeOf(dst))
	if allowed == nil {
		return nil
	}

	var unknown []string
	for key := range fields {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	messages := make([]string, len(unknown))
	for i, key := range unknown {
		messages[i] = fmt.Sprintf("property %s should not exist", key)
	}
	return rpc.BadRequest(strings.Join(messages, ", "))
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}
		names[name] = struct{}{}
	}
	return names
}

func decodeMessage(err error) string {
	const unknownPrefix = "json: unknown field "
	msg := err.Error()
	if strings.HasPrefix(msg, unknownPrefix) {
		field := strings.Trim(strings.TrimPrefix(msg, unknownPrefix), `"`)
		return fmt.Sprintf("property %s should not exist", field)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind())
	}
	return "Invalid request payload"
}

func validationMessage(verrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s should not be empty", fe.Field()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be an email", fe.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be shorter than or equal to %s characters", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(messages, ", ")
}
