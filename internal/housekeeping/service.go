package housekeeping

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhacidade/backend/internal/config"
)

// TokenPurger apaga tokens de recuperação usados ou expirados.
type TokenPurger interface {
	PurgeResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// Service executa a limpeza periódica.
type Service struct {
	tokens TokenPurger
	cfg    config.HousekeepingConfig
	now    func() time.Time
	logger zerolog.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(tokens TokenPurger, cfg config.HousekeepingConfig, logger zerolog.Logger) *Service {
	return &Service{
		tokens: tokens,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "housekeeping").Logger(),
	}
}

// Start inicia loop periódico. Seguro para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.runLoop(ctx)
	})
}

// Stop encerra o loop e espera a execução corrente terminar.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Service) runLoop(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("housekeeping: loop iniciado")

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("housekeeping: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("housekeeping: loop encerrado")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("housekeeping: execução periódica falhou")
			}
		}
	}
}

// RunOnce apaga tokens de recuperação vencidos e devolve quantos saíram.
func (s *Service) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.tokens.PurgeResetTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("removidos", n).Msg("housekeeping: tokens de recuperação removidos")
	}
	return n, nil
}
