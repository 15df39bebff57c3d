package util

import (
	"quiz_platform_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义的 binding 校验规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("sectionkind", func(fl validator.FieldLevel) bool {
		return model.SectionKind(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || s == model.VisibilityPublic || s == model.VisibilityPrivate
	})
}
