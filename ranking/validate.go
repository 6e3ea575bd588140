/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ranking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Notice is the single message shown to a player whose submission was
// rejected.
const Notice = "Please enter a game title, your name, and a score between 1 and 5."

var ErrInvalidSubmission = errors.New("invalid submission")

// Submission is a candidate entry as typed by a player. A zero Score means
// no star has been selected yet.
type Submission struct {
	Title string `json:"title" validate:"notblank"`
	Rater string `json:"rater" validate:"notblank"`
	Score int    `json:"score" validate:"required,min=1,max=5"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return trim(fl.Field().String()) != ""
		})
	})

	return validate
}

// trim strips Unicode white space and the byte order mark, which browsers
// also treat as blank when trimming form input.
func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}

// Validate accepts s iff its trimmed title and rater are non-empty and its
// score lies in [MinScore, MaxScore].
func Validate(s Submission) error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	return nil
}

// FieldErrors maps each failing field of a Validate error to a short
// message. It returns an empty map for errors that did not come from
// Validate.
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}

	for _, fe := range verrs {
		switch fe.Tag() {
		case "notblank":
			fields[fe.Field()] = "must not be empty"
		case "required", "min", "max":
			fields[fe.Field()] = fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)
		default:
			fields[fe.Field()] = "failed validation: " + fe.Tag()
		}
	}

	return fields
}
