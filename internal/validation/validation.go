package validation

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error alan bazlı doğrulama hatası; ErrorHandler 400 + details olarak döndürür
type Error struct {
	Message string
	Fields  []FieldError
	// Cause errors.Is ile yakalanabilecek alttaki sentinel hata (ör. lease.ErrLeaseOverlap)
	Cause error
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCause sentinel hatayı iliştirir
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Add bir alan hatası ekler
func (e *Error) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil hiç alan hatası yoksa nil döner
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NewError(fields ...FieldError) *Error {
	return &Error{Message: "Doğrulama hatası", Fields: fields}
}

// Field tek alanlı doğrulama hatası
func Field(field, message string) *Error {
	return NewError(FieldError{Field: field, Message: message})
}

// AsError err bir doğrulama hatası ise onu döner
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var (
	reSSN4   = regexp.MustCompile(`^[0-9]{4}$`)
	reDigits = regexp.MustCompile(`[^0-9]`)
)

// DigitsOnly telefon numarasındaki rakam dışı karakterleri atar
func DigitsOnly(s string) string {
	return reDigits.ReplaceAllString(s, "")
}

type Validator struct{ v *validator.Validate }

func New() *Validator {
	v := validator.New()

	// hata alanları json tag'i ile raporlansın
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// YYYY-MM-DD
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	// SSN son 4 hane
	_ = v.RegisterValidation("ssn4", func(fl validator.FieldLevel) bool {
		return reSSN4.MatchString(fl.Field().String())
	})
	// rakamlar ayıklandıktan sonra en az 10 hane
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return len(DigitsOnly(fl.Field().String())) >= 10
	})
	// en fazla 2 ondalık
	_ = v.RegisterValidation("dec2", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.Abs(f-(math.Round(f*100)/100)) < 1e-9
	})

	return &Validator{v: v}
}

// Struct doğrular ve hata varsa *Error döner
func (cv *Validator) Struct(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return NewError(ToFieldErrors(err)...)
	}
	return nil
}

var std = New()

// Struct paket genel validator ile doğrular
func Struct(i any) error {
	return std.Struct(i)
}

// ToFieldErrors validator.ValidationErrors -> []FieldError
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "zorunlu alan"})
		case "date":
			out = append(out, FieldError{Field: field, Message: "tarih YYYY-MM-DD formatında olmalı"})
		case "ssn4":
			out = append(out, FieldError{Field: field, Message: "tam olarak 4 rakam olmalı"})
		case "phone10":
			out = append(out, FieldError{Field: field, Message: "en az 10 haneli olmalı"})
		case "dec2":
			out = append(out, FieldError{Field: field, Message: "en fazla 2 ondalık basamak olmalı"})
		case "email":
			out = append(out, FieldError{Field: field, Message: "geçerli bir email olmalı"})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "şunlardan biri olmalı: " + e.Param()})
		case "gt":
			out = append(out, FieldError{Field: field, Message: e.Param() + "'dan büyük olmalı"})
		case "gte", "min":
			out = append(out, FieldError{Field: field, Message: "en az " + e.Param() + " olmalı"})
		case "lte", "max":
			out = append(out, FieldError{Field: field, Message: "en fazla " + e.Param() + " olmalı"})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " doğrulaması başarısız"})
		}
	}
	return out
}
