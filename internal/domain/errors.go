package domain

import (
	"errors"
	"fmt"
)

// Categorias de erro expostas pelo ledger e pela liquidação
var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("transient store error")
)

// Erros específicos; errors.Is também casa com a categoria
var (
	ErrDuplicateLeg        = fmt.Errorf("%w: duplicate leg", ErrConflict)
	ErrAlreadySettled      = fmt.Errorf("%w: already settled", ErrConflict)
	ErrAlreadyScored       = fmt.Errorf("%w: already scored", ErrConflict)
	ErrMatchAlreadyDecided = fmt.Errorf("%w: match already decided", ErrConflict)
	ErrUndoOverdraw        = fmt.Errorf("%w: undo would overdraw balance", ErrConflict)
)

// ValidationError aponta o campo inválido da entrada
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Code traduz o erro para o código estável devolvido ao cliente
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateLeg):
		return "duplicate_leg"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrAlreadyScored):
		return "already_scored"
	case errors.Is(err, ErrMatchAlreadyDecided):
		return "match_already_decided"
	case errors.Is(err, ErrUndoOverdraw):
		return "undo_overdraw"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient_store_error"
	}
	return "internal_error"
}
