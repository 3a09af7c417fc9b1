package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neuropath/rtcore/internal/appointment"
	"github.com/neuropath/rtcore/internal/chat"
	"github.com/neuropath/rtcore/internal/config"
	"github.com/neuropath/rtcore/internal/events"
	"github.com/neuropath/rtcore/internal/storage"
	"github.com/neuropath/rtcore/internal/util"
)

// store is what the running service needs from persistence.
type store interface {
	appointment.Store
	chat.Store
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, dir string, c config.Storage) (store, error) {
	switch c.Driver {
	case storage.DriverMemory:
		log.Warn("storage: memory driver, nothing survives a restart")
		return storage.NewMemory(), nil
	case storage.DriverSQLite:
		path := util.ResolvePath(dir, c.DSN)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return storage.Open(ctx, c.Driver, path)
	default:
		return storage.Open(ctx, c.Driver, c.DSN)
	}
}

func openSink(ctx context.Context, c config.Events) (events.Sink, error) {
	switch c.Sink {
	case "kafka":
		log.Infof("audit events -> kafka %v topic %s", c.KafkaBrokers, c.KafkaTopic)
		return events.NewKafka(c.KafkaBrokers, c.KafkaTopic)
	case "sqs":
		log.Info("audit events -> sqs")
		return events.NewSQS(ctx, c.SQSQueueURL, c.SQSQueueName)
	}
	return events.Nop{}, nil
}

func logBanner(dir, cfgPath string, cfg config.Config) {
	log.Info("────────────────────────────────────────")
	log.Infof(" Data dir    : %s", dir)
	log.Infof(" Config file : %s", cfgPath)
	log.Infof(" Listen      : http://%s", cfg.Server.HTTPAddr)
	log.Infof(" Storage     : %s", cfg.Storage.Driver)
	log.Infof(" Audit sink  : %s", cfg.Events.Sink)
	log.Info("────────────────────────────────────────")
}
