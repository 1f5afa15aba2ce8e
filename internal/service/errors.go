package service

import "errors"

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
	// ErrConflict indica e-mail, CPF ou matrícula já cadastrados.
	ErrConflict = errors.New("registro já cadastrado")
)
