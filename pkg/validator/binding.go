package validator

import (
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
)

// RegisterBindingTags adds the `cpf` and `br_phone` tags to gin's struct validator
func RegisterBindingTags() error {
	v, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("cpf", func(fl playground.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || ValidateCPF(s) == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("br_phone", func(fl playground.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || PhoneDigitsBetween(s, 10, 11)
	})
}
