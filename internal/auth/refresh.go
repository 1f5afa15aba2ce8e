package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// GenerateRefreshToken cria token aleatório seguro e seu hash persistível.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	return randomToken()
}

// GenerateResetToken cria token de redefinição de senha; apenas o hash é gravado.
func GenerateResetToken() (raw string, hashed string, err error) {
	return randomToken()
}

func randomToken() (raw string, hashed string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashToken(raw)
	return raw, hashed, nil
}

// HashToken produz hash SHA-256 base64.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey monta a chave do refresh. O tipo de conta entra na chave para que
// ids iguais em tabelas diferentes não colidam.
func RefreshRedisKey(audience, hash string) string {
	return fmt.Sprintf("refresh:%s:%s", audience, hash)
}
