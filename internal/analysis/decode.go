package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldError 描述单个字段的校验失败。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 表示入站请求格式不合法，应返回 4xx 而非 5xx。
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(correlationLevel, Correlation{})
	return v
}

// correlationLevel 要求携带 K 线的相关品种块必须给出 symbol；空块视为未提供。
func correlationLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(Correlation)
	if strings.TrimSpace(c.Symbol) != "" {
		return
	}
	if len(c.Candles) > 0 || len(c.LowCandles) > 0 {
		sl.ReportError(c.Symbol, "symbol", "Symbol", "required_with_candles", "")
	}
}

// Decode 解析并校验原始请求体：schema 类型检查 → JSON 解码 → 补默认值 → 语义校验。
func Decode(raw []byte) (*Request, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, invalid("body", "request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("body", "malformed JSON: %v", err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &ValidationError{Errors: schemaFieldErrors(ve)}
		}
		return nil, invalid("body", "%v", err)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, invalid(te.Field, "expected %s, got %s", te.Type, te.Value)
		}
		return nil, invalid("body", "%v", err)
	}
	if err := defaults.Set(&req); err != nil {
		return nil, fmt.Errorf("apply request defaults: %w", err)
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	if err := validate.Struct(&req); err != nil {
		return nil, fromValidator(err)
	}
	return &req, nil
}

func fromValidator(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return invalid("body", "%v", err)
	}
	out := &ValidationError{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "required_with_candles":
			msg = "is required when candles are supplied"
		default:
			msg = "failed validation: " + fe.Tag()
		}
		out.Errors = append(out.Errors, FieldError{Field: field, Message: msg})
	}
	return out
}
