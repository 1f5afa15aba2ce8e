package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type signupPayload struct {
	Nome  string `json:"nome" validate:"required,min=3"`
	Email string `json:"email" validate:"required,email"`
	CPF   string `json:"cpf" validate:"required,cpf"`
	UF    string `json:"estado" validate:"omitempty,uf"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	problems := ValidateStruct(signupPayload{Nome: "Jo", Email: "x", CPF: "111.111.111-11", UF: "pe"})

	assert.Contains(t, problems, "nome")
	assert.Contains(t, problems, "email")
	assert.Equal(t, []string{"CPF inválido"}, problems["cpf"])
	assert.Contains(t, problems, "estado")
}

func TestValidateStructAcceptsFormattedCPF(t *testing.T) {
	problems := ValidateStruct(signupPayload{Nome: "Maria", Email: "maria@example.com", CPF: "529.982.247-25", UF: "PE"})
	assert.Empty(t, problems)
}

func TestValidateWrapsProblems(t *testing.T) {
	err := Validate(signupPayload{})
	var ve *ValidationError
	if assert.ErrorAs(t, err, &ve) {
		assert.Contains(t, ve.Fields, "nome")
		assert.Contains(t, ve.Error(), "dados inválidos")
	}
	assert.NoError(t, Validate(signupPayload{Nome: "Maria", Email: "maria@example.com", CPF: "52998224725"}))
}
