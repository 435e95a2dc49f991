package eventbus

import (
	"context"

	"github.com/annel0/voxel-stream/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог шины.
// Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	logger := logging.GetEventBusLogger()
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, env *Envelope) {
		ev, err := DecodeChunkEvent(env)
		if err != nil {
			logger.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", env.ID, env.EventType, env.Source, env.Priority, len(env.Payload))
			return
		}
		logger.Debug("[EventBus] %s %s chunk=%s voxels=%d attempts=%d", env.ID, env.EventType, ev.Pos, ev.Voxels, ev.Attempts)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("LoggingListener: подписка на все события активирована")
	return sub, nil
}
