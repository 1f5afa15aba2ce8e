package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/notificacao"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// TokenParser valida o JWT de acesso.
type TokenParser interface {
	ParseAndValidate(token string) (*auth.Claims, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler autentica pelo parâmetro `token` e mantém a conexão registrada no hub.
// Navegadores não enviam Authorization no handshake de WebSocket.
func Handler(hub *Hub, tokens TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := tokens.ParseAndValidate(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "token inválido", http.StatusUnauthorized)
			return
		}
		p, err := auth.PrincipalFromClaims(claims)
		if err != nil {
			http.Error(w, "token inválido", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("realtime: falha no upgrade")
			return
		}

		client := NewClient(notificacao.AccountKey(p.Kind, p.ID), 64)
		if !hub.Register(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "encerrando"), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}

		go writePump(conn, client)
		readPump(conn, hub, client)
	}
}

func writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump descarta mensagens do cliente; serve para detectar desconexão e pongs.
func readPump(conn *websocket.Conn, hub *Hub, client *Client) {
	defer func() {
		hub.Unregister(client)
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
