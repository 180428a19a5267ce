package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Reward source validation
	validate.RegisterValidation("reward_source", func(fl validator.FieldLevel) bool {
		source := fl.Field().String()
		validSources := []string{"order", "referral", "achievement", "spin_wheel", "daily_login", "social_share", "admin", "redemption", "expiry"}
		for _, s := range validSources {
			if source == s {
				return true
			}
		}
		return false
	})

	// Streak type validation
	validate.RegisterValidation("streak_type", func(fl validator.FieldLevel) bool {
		st := fl.Field().String()
		validTypes := []string{"login", "order", "review"}
		for _, t := range validTypes {
			if st == t {
				return true
			}
		}
		return false
	})

	// Ledger entry kind validation
	validate.RegisterValidation("entry_kind", func(fl validator.FieldLevel) bool {
		kind := fl.Field().String()
		validKinds := []string{"earned", "spent", "expired", "refunded", "bonus", ""}
		for _, k := range validKinds {
			if kind == k {
				return true
			}
		}
		return false
	})

	// Social platform validation
	validate.RegisterValidation("share_platform", func(fl validator.FieldLevel) bool {
		platform := fl.Field().String()
		validPlatforms := []string{"instagram", "tiktok", "facebook", "x", "whatsapp"}
		for _, p := range validPlatforms {
			if platform == p {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is below the allowed minimum"
		case "max":
			errors[field] = "Value exceeds the allowed maximum"
		case "reward_source":
			errors[field] = "Unknown reward source"
		case "streak_type":
			errors[field] = "Streak type must be login, order or review"
		case "entry_kind":
			errors[field] = "Unknown ledger entry kind"
		case "share_platform":
			errors[field] = "Unsupported social platform"
		default:
			errors[field] = "Invalid value"
		}
	}
	return errors
}
