package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
)

var validate = newValidator()

// newValidator reporta os campos pelo nome do JSON
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type CreateAccountRequest struct {
	SeasonID string `json:"seasonId" validate:"required"`
}

type LegRequest struct {
	MatchID string `json:"matchId" validate:"required"`
	Outcome string `json:"outcome" validate:"required,oneof=home away draw forfeit"`
}

type PlaceWagerRequest struct {
	SeasonID string          `json:"seasonId" validate:"required"`
	Stake    decimal.Decimal `json:"stake"` // aceita "10.50" ou 10.5
	Legs     []LegRequest    `json:"legs" validate:"required,min=1,dive"`
}

type SettleMatchRequest struct {
	HomeScore   *int   `json:"homeScore" validate:"omitempty,min=0"`
	AwayScore   *int   `json:"awayScore" validate:"omitempty,min=0"`
	IsForfeit   bool   `json:"isForfeit"`
	ForfeitedBy string `json:"forfeitedBy" validate:"omitempty,oneof=home away"`
}

type GrantRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	SeasonID string          `json:"seasonId" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// Validate roda as tags e devolve o primeiro campo inválido como
// *domain.ValidationError
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.Invalid(jsonField(fe.Namespace()), reason(fe))
	}
	return domain.Invalid("body", err.Error())
}

// jsonField tira o nome da struct: "PlaceWagerRequest.legs[0].matchId" vira "legs[0].matchId"
func jsonField(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag()
}
