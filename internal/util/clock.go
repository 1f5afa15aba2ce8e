package util

import "time"

// Now devolve o instante atual em UTC. Os serviços guardam a função para trocá-la nos testes.
func Now() time.Time {
	return time.Now().UTC()
}
