package util

import "unicode"

// SanitizeCPF remove tudo que não for dígito.
func SanitizeCPF(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// ValidateCPF confere tamanho, sequência repetida e os dois dígitos verificadores.
// Espera o CPF já sanitizado.
func ValidateCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	allEq := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allEq = false
			break
		}
	}
	if allEq {
		return false
	}

	digits := make([]int, 11)
	for i := range cpf {
		if cpf[i] < '0' || cpf[i] > '9' {
			return false
		}
		digits[i] = int(cpf[i] - '0')
	}

	return checkDigit(digits[:9], 10) == digits[9] && checkDigit(digits[:10], 11) == digits[10]
}

func checkDigit(digits []int, weight int) int {
	sum := 0
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}
