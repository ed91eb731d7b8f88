package session

import (
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/railyard/railyard/internal/railyarderr"
)

// nameRE is the session-name grammar from spec §3: ^[A-Za-z][A-Za-z0-9_-]{0,63}$.
var nameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

var (
	validatorOnce sync.Once
	v             *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v = validator.New()
		_ = v.RegisterValidation("sessionname", func(fl validator.FieldLevel) bool {
			return nameRE.MatchString(fl.Field().String())
		})
	})
	return v
}

type createInput struct {
	Name          string `validate:"required,sessionname"`
	WorkspacePath string `validate:"required"`
}

// ValidateName reports whether name matches the session-name grammar.
func ValidateName(name string) bool {
	return nameRE.MatchString(name)
}

// validateCreate runs struct-tag validation plus the absolute-path rule
// (spec §4.2: "fails... if workspace_path is relative").
func validateCreate(name, workspacePath string) error {
	in := createInput{Name: name, WorkspacePath: workspacePath}
	if err := getValidator().Struct(in); err != nil {
		return railyarderr.Validation(railyarderr.CodeInvalidSessionName, "invalid session name or workspace path").
			WithDetails(map[string]any{"name": name, "workspace_path": workspacePath})
	}
	if !filepath.IsAbs(workspacePath) {
		return railyarderr.Validation(railyarderr.CodeInvalidSessionName, "workspace_path must be absolute").
			WithDetails(map[string]any{"workspace_path": workspacePath})
	}
	return nil
}
