// Package notify delivers one-time codes to officials. A Dispatcher routes on
// the official's preferred channel; concrete carriers sit behind it.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fleetgov.org/internal/auth"
)

// Dispatcher routes a code to the carrier registered for the channel.
type Dispatcher struct {
	email auth.Sender
	sms   auth.Sender
	log   *zap.Logger
}

var _ auth.Sender = (*Dispatcher)(nil)

func NewDispatcher(email, sms auth.Sender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, log: log}
}

func (d *Dispatcher) Send(ctx context.Context, channel auth.Channel, recipient, code string) error {
	var carrier auth.Sender
	switch channel {
	case auth.ChannelEmail:
		carrier = d.email
	case auth.ChannelSMS:
		carrier = d.sms
	default:
		return fmt.Errorf("%w: unknown channel %q", auth.ErrDeliveryFailure, channel)
	}
	if carrier == nil {
		return fmt.Errorf("%w: no carrier for channel %q", auth.ErrDeliveryFailure, channel)
	}
	if err := carrier.Send(ctx, channel, recipient, code); err != nil {
		d.log.Warn("one-time code delivery failed",
			zap.String("channel", string(channel)),
			zap.Error(err))
		return err
	}
	return nil
}

// LogSender writes codes to the log instead of delivering them. Dev only.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(_ context.Context, channel auth.Channel, recipient, code string) error {
	s.Log.Info("one-time code (dev delivery)",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("code", code))
	return nil
}
