package services

import (
	"errors"
	"fmt"
)

// Erros sentinela do registro. Use errors.Is para classificá-los.
var (
	ErrDuplicateID         = errors.New("estrela já existe")
	ErrNotFound            = errors.New("estrela não encontrada")
	ErrNotOwner            = errors.New("chamador não é o dono da estrela")
	ErrNotForSale          = errors.New("estrela não está à venda")
	ErrInsufficientPayment = errors.New("pagamento menor que o preço")
	ErrInsufficientFunds   = errors.New("saldo insuficiente")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrAlreadyCredited     = errors.New("depósito já creditado")
)

// StarError descreve a falha de uma operação do registro.
type StarError struct {
	Op     string
	StarID string
	Err    error
}

func (e *StarError) Error() string {
	if e.StarID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.StarID, e.Err)
}

func (e *StarError) Unwrap() error {
	return e.Err
}

func starErr(op, id string, err error) error {
	return &StarError{Op: op, StarID: id, Err: err}
}

// IsNotFound verifica se o erro indica estrela inexistente.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotOwner verifica se o erro indica falta de permissão sobre a estrela.
func IsNotOwner(err error) bool {
	return errors.Is(err, ErrNotOwner)
}
