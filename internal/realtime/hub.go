package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client é uma conexão registrada sob a chave da conta ("tipo:id").
type Client struct {
	ID   uint64
	Key  string
	Send chan []byte
}

// NewClient cria cliente com buffer de envio.
func NewClient(key string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{Key: key, Send: make(chan []byte, buffer)}
}

// Hub mantém as conexões abertas por conta. Clientes lentos são descartados
// para não travar quem envia.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[uint64]*Client
	closed  bool
	nextID  atomic.Uint64
	log     zerolog.Logger
}

// NewHub cria hub vazio.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[uint64]*Client),
		log:     log.With().Str("component", "realtime").Logger(),
	}
}

// Register inclui o cliente. Retorna false se o hub já foi encerrado.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	c.ID = h.nextID.Add(1)
	byKey := h.clients[c.Key]
	if byKey == nil {
		byKey = make(map[uint64]*Client)
		h.clients[c.Key] = byKey
	}
	byKey[c.ID] = c
	h.log.Debug().Str("conta", c.Key).Uint64("cliente", c.ID).Msg("cliente conectado")
	return true
}

// Unregister remove o cliente e fecha seu canal. Chamadas repetidas são ignoradas.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

func (h *Hub) remove(c *Client) {
	byKey := h.clients[c.Key]
	if byKey == nil {
		return
	}
	if _, ok := byKey[c.ID]; !ok {
		return
	}
	delete(byKey, c.ID)
	if len(byKey) == 0 {
		delete(h.clients, c.Key)
	}
	close(c.Send)
}

// SendTo envia a todas as conexões da conta e devolve quantas receberam.
func (h *Hub) SendTo(key string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, c := range h.clients[key] {
		if h.offer(c, payload) {
			delivered++
		}
	}
	return delivered
}

// Broadcast envia a todas as conexões.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, byKey := range h.clients {
		for _, c := range byKey {
			if h.offer(c, payload) {
				delivered++
			}
		}
	}
	return delivered
}

// offer exige h.mu travado para escrita.
func (h *Hub) offer(c *Client, payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		h.log.Warn().Str("conta", c.Key).Uint64("cliente", c.ID).Msg("cliente lento descartado")
		h.remove(c)
		return false
	}
}

// Connections conta conexões abertas da conta.
func (h *Hub) Connections(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key])
}

// Close desconecta todos os clientes; registros posteriores são recusados.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, byKey := range h.clients {
		for _, c := range byKey {
			h.remove(c)
		}
	}
}
