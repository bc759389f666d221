package inbound

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/gateway/fix"
	"matchbook/infra/queue"
)

// Simulator is a synthetic client that submits random NewOrderSingle
// messages with a jittered pause between them.
type Simulator struct {
	Gateway   *Gateway
	Generator *fix.Generator
	ClientID  uint64
	// Count stops the client after that many accepted orders; zero runs
	// until ctx is done.
	Count    int
	MinPause time.Duration
	MaxPause time.Duration
}

func (s *Simulator) Run(ctx context.Context) error {
	log := s.Gateway.log.With(zap.Uint64("client_id", s.ClientID))
	log.Info("simulated client started")

	sent := 0
	for s.Count == 0 || sent < s.Count {
		_, err := s.Gateway.Submit(ctx, s.Generator.Random(), s.ClientID)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, queue.ErrClosed):
			log.Info("command queue closed, simulated client stopping", zap.Int("sent", sent))
			return nil
		case err == nil:
			sent++
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.pause()):
		}
	}

	log.Info("simulated client finished", zap.Int("sent", sent))
	return nil
}

func (s *Simulator) pause() time.Duration {
	if s.MaxPause <= s.MinPause {
		return s.MinPause
	}
	return s.MinPause + rand.N(s.MaxPause-s.MinPause)
}
