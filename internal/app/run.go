// Package app wires the coordination components together and runs the
// service until its context is cancelled.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/neuropath/rtcore/internal/appointment"
	"github.com/neuropath/rtcore/internal/auth"
	"github.com/neuropath/rtcore/internal/call"
	"github.com/neuropath/rtcore/internal/chat"
	"github.com/neuropath/rtcore/internal/config"
	"github.com/neuropath/rtcore/internal/events"
	"github.com/neuropath/rtcore/internal/gateway"
	"github.com/neuropath/rtcore/internal/presence"
	"github.com/neuropath/rtcore/internal/registry"
	"github.com/neuropath/rtcore/internal/server"
	"github.com/neuropath/rtcore/internal/signaling"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("app")

// Offline presence entries older than this are forgotten.
const presenceRetention = 24 * time.Hour

type Options struct {
	Dir     string
	CfgPath string
	Cfg     config.Config
}

func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg

	logs := server.NewLogBuffer(cfg.Log.BufferSize)
	pipe := logging.NewPipeReader(logging.PipeFormat(logging.PlaintextOutput))
	defer pipe.Close()
	go func() { _, _ = io.Copy(logs, pipe) }()

	if err := config.ApplyLogLevels(cfg.Log); err != nil {
		return err
	}
	logBanner(opt.Dir, opt.CfgPath, cfg)

	store, err := openStore(ctx, opt.Dir, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := openSink(ctx, cfg.Events)
	if err != nil {
		return err
	}
	audit := events.NewPublisher(sink, 0)
	defer func() {
		if err := audit.Close(); err != nil {
			log.Warnf("close audit sink: %v", err)
		}
	}()

	reg := registry.New(cfg.Server.MaxConnectionsPerUser)
	tracker := presence.New(reg)
	reg.OnChange(tracker.Handle)

	calls := call.NewManager(reg, audit, time.Duration(cfg.Calls.RingTimeoutSec)*time.Second)
	defer calls.Close()
	tracker.OnChange(func(st presence.Status) {
		calls.HandlePresence(st.UserID, st.Online)
	})

	appts := appointment.NewService(store, reg, audit)
	chatRelay := chat.NewRelay(store, reg, audit, cfg.Chat.MaxContentLength)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	gw := gateway.New(gateway.Deps{
		Verifier:     verifier,
		Registry:     reg,
		Presence:     tracker,
		Appointments: appts,
		Chat:         chatRelay,
		Signals:      signaling.NewRelay(reg, calls),
	}, gateway.Options{
		PingInterval:           time.Duration(cfg.Server.PingSec) * time.Second,
		PongWait:               time.Duration(cfg.Server.PongWaitSec) * time.Second,
		WriteWait:              time.Duration(cfg.Server.WriteWaitSec) * time.Second,
		MaxFrameBytes:          cfg.Server.MaxFrameBytes,
		OutboundBuffer:         cfg.Server.OutboundBuffer,
		AllowedOrigins:         cfg.Server.AllowedOrigins,
		ICEServers:             cfg.Calls.ICEServers,
		EventsPerMinutePerUser: cfg.Limits.EventsPerMinutePerUser,
		EventsPerMinuteGlobal:  cfg.Limits.EventsPerMinuteGlobal,
	})

	srv := server.New(server.Deps{
		Socket:            gw,
		Verifier:          verifier,
		Appointments:      appts,
		Chat:              chatRelay,
		Presence:          tracker,
		Connections:       reg,
		Calls:             calls,
		Store:             store,
		Logs:              logs,
		ICEServers:        cfg.Calls.ICEServers,
		AdminPasswordHash: cfg.Admin.PasswordHash,
		HistoryLimit:      cfg.Chat.HistoryLimit,
	})

	if opt.CfgPath != "" {
		go func() {
			err := config.Watch(ctx, opt.CfgPath, func(r config.Reloadable) {
				if err := config.ApplyLogLevels(r.Log); err != nil {
					log.Warnf("log levels: %v", err)
				}
				calls.SetRingTimeout(r.RingTimeout)
				gw.SetRateLimits(r.Limits.EventsPerMinutePerUser, r.Limits.EventsPerMinuteGlobal)
			})
			if err != nil {
				log.Warnf("config watch disabled: %v", err)
			}
		}()
	}

	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := tracker.Prune(time.Now().Add(-presenceRetention)); n > 0 {
					log.Debugf("pruned %d offline presence entries", n)
				}
			}
		}
	}()

	if err := srv.ListenAndServe(ctx, cfg.Server.HTTPAddr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("shut down")
	return nil
}
