package access

import (
	"fmt"

	errors "github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/core/common/validation"
)

type CreateFlagDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
}

func (dto CreateFlagDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(100)
	v.Field("actions", dto.Actions).Custom(validActions("actions"))
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type MutateActionsDTO struct {
	Add    []Action `json:"add,omitempty"`
	Remove []Action `json:"remove,omitempty"`
}

func (dto MutateActionsDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("add", dto.Add).Custom(validActions("add"))
	v.Field("remove", dto.Remove).Custom(validActions("remove"))
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func validActions(field string) func(interface{}) *errors.AppError {
	return func(value interface{}) *errors.AppError {
		actions, _ := value.([]Action)
		for i, a := range actions {
			if ParseAction(string(a)) == "" {
				return errors.NewValidationFieldError(field, fmt.Sprintf("%s[%d] must not be blank", field, i), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	}
}

type FlagResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
}

type FlagsResponse struct {
	Flags []FlagResponse `json:"flags"`
}

type UserActionsResponse struct {
	UserID  string         `json:"user_id"`
	Flags   []FlagResponse `json:"flags"`
	Actions []Action       `json:"actions"`
}
