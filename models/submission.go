package models

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Draft is a report assembled by the caller before it enters the submission pipeline.
type Draft struct {
	Title       string `json:"title" validate:"min=5"`
	Description string `json:"description"`
	Location    string `json:"location" validate:"min=3"`
	Category    string `json:"category" validate:"category"`
	Media       *Media `json:"-"`
}

// Media is an attached photo or video.
type Media struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DetectedType sniffs the MIME type from the payload; the declared ContentType is not trusted.
func (m *Media) DetectedType() string {
	return mimetype.Detect(m.Data).String()
}

type ValidationRules struct {
	MediaRequired bool
	MaxMediaBytes int64
	AllowedMIME   []string
}

func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		MediaRequired: true,
		MaxMediaBytes: 50 << 20,
		AllowedMIME:   []string{"image/jpeg", "image/png", "video/mp4", "video/quicktime"},
	}
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := ParseCategory(fl.Field().String())
		return ok
	})
	return v
}

// Normalized trims the text fields.
func (d Draft) Normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
	d.Category = strings.TrimSpace(d.Category)
	return d
}

// Validate reports every failing field, or nil when the draft is well-formed.
func (d Draft) Validate(rules ValidationRules) error {
	d = d.Normalized()

	var errs ValidationErrors

	if err := draftValidator.Struct(d); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, fe := range verrs {
			errs = append(errs, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}

	if msg, ok := d.mediaProblem(rules); !ok {
		errs = append(errs, FieldError{Field: "media", Message: msg})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (d Draft) mediaProblem(rules ValidationRules) (string, bool) {
	if d.Media == nil {
		if rules.MediaRequired {
			return "a photo or video is required", false
		}
		return "", true
	}
	if len(d.Media.Data) == 0 {
		return "media file is empty", false
	}
	if rules.MaxMediaBytes > 0 && int64(len(d.Media.Data)) > rules.MaxMediaBytes {
		return fmt.Sprintf("media must not exceed %d MB", rules.MaxMediaBytes>>20), false
	}
	detected := mimetype.Detect(d.Media.Data)
	if !lo.ContainsBy(rules.AllowedMIME, detected.Is) {
		return fmt.Sprintf("media type %s is not allowed", detected.String()), false
	}
	return "", true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "category":
		return "must be one of " + strings.Join(lo.Map(Categories, func(c IssueCategory, _ int) string {
			return string(c)
		}), ", ")
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
