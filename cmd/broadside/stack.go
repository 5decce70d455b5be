package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/broadside-sim/broadside/internal/api"
	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/internal/database"
	"github.com/broadside-sim/broadside/internal/dispatcher"
	"github.com/broadside-sim/broadside/internal/eventbus"
	"github.com/broadside-sim/broadside/internal/influx"
	"github.com/broadside-sim/broadside/internal/logging"
	"github.com/broadside-sim/broadside/internal/session"
	"github.com/broadside-sim/broadside/internal/storage"
	gormstorage "github.com/broadside-sim/broadside/internal/storage/gorm"
	"github.com/broadside-sim/broadside/internal/worker"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/spf13/viper"
)

// stack is one wired battle pipeline: storage, session and the dispatcher
// in front of them.
type stack struct {
	backend    storage.Backend
	influx     *influx.Manager
	session    *session.Session
	dispatcher *dispatcher.Dispatcher
	worker     *worker.Manager
	unsub      []func()
}

func (a *app) newStack() (*stack, error) {
	sc := balance.DefaultScenario()
	if path := viper.GetString("scenarioFile"); path != "" {
		loaded, err := balance.LoadScenario(path)
		if err != nil {
			return nil, err
		}
		sc = loaded
		a.log.Info("Loaded scenario", "name", sc.Name, "path", dataPath(path))
	}
	cfg, err := config.GetBalanceConfig()
	if err != nil {
		return nil, err
	}

	s := &stack{}
	storageCfg := config.GetStorageConfig()
	s.backend, err = storage.NewBackend(storageCfg, a.log)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	a.log.Info("Storage backend initialized", "type", storageCfg.Type)

	bus := eventbus.New(a.log)
	s.unsub = append(s.unsub,
		bus.Subscribe(core.EventGameOver, func(ev core.Event) {
			if p, ok := ev.Data.(core.GameOver); ok {
				a.log.Info("Game over", "winner", p.Winner, "turn", p.TurnNumber)
			}
		}),
		bus.Subscribe(core.EventErrorOccurred, func(ev core.Event) {
			if p, ok := ev.Data.(core.ErrorOccurred); ok {
				a.log.Warn("Battle error", "context", p.Context, "error", p.Error, "turn", ev.Turn)
			}
		}),
	)

	opts := []session.Option{
		session.WithStorage(s.backend),
		session.WithBus(bus),
		session.WithScenario(sc),
		session.WithBalance(cfg),
		session.WithLogger(a.log),
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		s.influx = influx.NewManager(a.zerolog("influx"), influxCfg)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.influx.Connect(ctx)
		cancel()
		if err != nil {
			a.log.Warn("InfluxDB unavailable", "error", err)
		}
		opts = append(opts, session.WithObserver(s.influx))
	}

	s.session, err = session.New(opts...)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	a.current.Store(s.session)

	s.dispatcher, err = dispatcher.NewWithMeter(
		logging.NewDispatcherLogger(a.zerolog("dispatcher")),
		a.otel.Meter("github.com/broadside-sim/broadside/internal/dispatcher"),
	)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	uploadOnEnd := viper.GetBool("api.uploadOnEnd")
	if uploadOnEnd {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Healthcheck(ctx)
		cancel()
		if err != nil {
			a.log.Warn("Archive server unreachable", "error", err)
		}
	}
	s.worker = worker.NewManager(worker.Dependencies{
		Session:     s.session,
		Backend:     s.backend,
		Uploader:    client,
		UploadOnEnd: uploadOnEnd,
		Scenario:    sc,
		Logger:      a.log,
	})
	s.worker.RegisterHandlers(s.dispatcher)
	return s, nil
}

func (s *stack) dispatch(name string, args ...string) (any, error) {
	return s.dispatcher.Dispatch(dispatcher.Request{Name: name, Args: args})
}

// close ends a running battle, drains pending uploads and closes storage.
func (s *stack) close() error {
	var errs []error
	if s.dispatcher != nil {
		if _, err := s.dispatch(worker.CmdEndBattle); err != nil && !errors.Is(err, session.ErrNoBattle) {
			errs = append(errs, err)
		}
		s.dispatcher.Close()
	}
	for _, unsub := range s.unsub {
		unsub()
	}
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}
	if s.influx != nil {
		errs = append(errs, s.influx.Close())
	}
	return errors.Join(errs...)
}

// openDatabase connects to Postgres, falling back to the SQLite file at
// path (or the configured dump path).
func (a *app) openDatabase(path string) (*gormstorage.Backend, error) {
	m := database.NewManager(a.zerolog("database"))
	if path != "" {
		db, err := database.GetSqliteDB(path)
		if err != nil {
			return nil, err
		}
		m.DB = db
	} else {
		m.SqliteFilePath = config.GetStorageConfig().SQLite.DumpPath
		if err := m.Connect(); err != nil {
			return nil, err
		}
	}
	if err := m.Setup(); err != nil {
		return nil, err
	}
	return gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: a.log}), nil
}
