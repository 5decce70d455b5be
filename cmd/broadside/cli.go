package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/broadside-sim/broadside/internal/api"
	"github.com/broadside-sim/broadside/internal/database"
	"github.com/broadside-sim/broadside/internal/engine"
	"github.com/broadside-sim/broadside/internal/monitor"
	"github.com/broadside-sim/broadside/internal/storage"
	"github.com/broadside-sim/broadside/internal/worker"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/spf13/viper"
)

const playHelp = `commands:
  fire-laser laser-1 | fire-railgun railgun-1 | launch-missiles missile-1
  evade | pass       take a turn
  state              print the ship status
  logs [category]    print the battle log
  weapon <id>        show whether a weapon can fire
  status             show recorder status
  reset              restart the battle
  end                end the battle
  quit               leave
`

// logPrinter writes log entries that have not been printed yet.
type logPrinter struct {
	out     io.Writer
	printed int
}

func (p *logPrinter) print(logs []core.LogEntry) {
	if len(logs) < p.printed {
		p.printed = 0
	}
	for _, l := range logs[p.printed:] {
		fmt.Fprintf(p.out, "[T%d] %s %s\n", l.TurnNumber, l.Emoji, l.Text)
	}
	p.printed = len(logs)
}

func printStatus(out io.Writer, st core.GameState) {
	p, e := st.Player, st.Enemy
	fmt.Fprintf(out, "turn %d | distance %d | hull %.0f/%.0f | shields %.0f | enemy %s hull %.0f | missiles %d\n",
		st.TurnNumber, e.Distance, p.Hull.Port, p.Hull.Starboard, p.Shields, e.Name, e.Hull, len(st.Missiles))
	for _, w := range st.Weapons {
		state := "ready"
		if !w.Ready() {
			state = fmt.Sprintf("cooldown %d", w.Cooldown)
		}
		fmt.Fprintf(out, "  %-10s %-16s %s\n", w.ID, w.Name, state)
	}
}

func (a *app) play(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(out)
	resume := fs.String("resume", "", "continue a recorded battle by id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.newStack()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			a.log.Error("Failed to close battle stack", "error", err)
		}
	}()

	var st core.GameState
	if *resume != "" {
		loader, ok := s.backend.(storage.Loader)
		if !ok {
			return fmt.Errorf("%s storage cannot load battles", viper.GetString("storage.type"))
		}
		st, err = s.session.Resume(loader, *resume)
	} else {
		var res any
		res, err = s.dispatch(worker.CmdStartBattle, fs.Args()...)
		st, _ = res.(core.GameState)
	}
	if err != nil {
		return err
	}

	logs := &logPrinter{out: out}
	logs.print(st.Logs)
	printStatus(out, st)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, playHelp)
		case "state":
			res, _ := s.dispatch(worker.CmdState)
			printStatus(out, res.(core.GameState))
		case "logs":
			res, err := s.dispatch(worker.CmdLogs, fields[1:]...)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			(&logPrinter{out: out}).print(res.([]core.LogEntry))
		case "weapon":
			res, err := s.dispatch(worker.CmdWeapon, fields[1:]...)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			ws := res.(worker.WeaponStatus)
			fmt.Fprintf(out, "%s ready=%t %s\n", ws.ID, ws.Ready, ws.Tooltip)
		case "status":
			res, _ := s.dispatch(worker.CmdStatus)
			ws := res.(worker.Status)
			fmt.Fprintf(out, "battle %s (%s) turn %d ended=%t gameOver=%t pending=%d/%d\n",
				ws.BattleID, ws.Scenario, ws.Turn, ws.Ended, ws.GameOver, ws.PendingTurns, ws.PendingEvents)
		case "reset":
			res, err := s.dispatch(worker.CmdReset)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			st := res.(core.GameState)
			logs.print(st.Logs)
			printStatus(out, st)
		case "end":
			if _, err := s.dispatch(worker.CmdEndBattle); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "battle ended")
		default:
			res, err := s.dispatch(worker.CmdTurn, line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			tr := res.(engine.TurnResult)
			logs.print(tr.State.Logs)
			printStatus(out, tr.State)
			if tr.State.GameOver {
				fmt.Fprintf(out, "game over: %s wins (reset or quit)\n", tr.State.Winner)
			}
		}
	}
}

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", viper.GetString("server.addr"), "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.newStack()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			a.log.Error("Failed to close battle stack", "error", err)
		}
	}()
	if _, err := s.dispatch(worker.CmdStartBattle); err != nil {
		return err
	}

	mon, err := monitor.NewService(monitor.Dependencies{
		Source:     s.worker,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
		Meter:      a.otel.Meter("github.com/broadside-sim/broadside/internal/monitor"),
		Logger:     a.log,
	})
	if err != nil {
		return err
	}
	mon.Start()
	defer func() {
		if err := mon.Stop(); err != nil {
			a.log.Warn("Failed to stop status monitor", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewServer(s.dispatcher, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) list(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", "", "SQLite file to read instead of Postgres")
	limit := fs.Int("n", 20, "maximum battles to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := a.openDatabase(*dbPath)
	if err != nil {
		return err
	}
	return printBattles(b, *limit, out)
}

type battleLister interface {
	ListBattles(limit int) ([]core.Battle, error)
}

func printBattles(b battleLister, limit int, out io.Writer) error {
	battles, err := b.ListBattles(limit)
	if err != nil {
		return err
	}
	for _, bt := range battles {
		fmt.Fprintf(out, "%s  %s  %-12s vs %s\n",
			bt.StartedAt.Format(time.DateTime), bt.ID, bt.Scenario, bt.EnemyName)
	}
	return nil
}

func (a *app) replay(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", "", "SQLite file to read instead of Postgres")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("replay needs exactly one battle id")
	}

	b, err := a.openDatabase(*dbPath)
	if err != nil {
		return err
	}
	battle, turns, err := b.LoadBattle(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %s vs %s, started %s\n",
		battle.ID, battle.Scenario, battle.EnemyName, battle.StartedAt.Format(time.DateTime))
	logs := &logPrinter{out: out}
	logs.print(battle.Initial.Logs)
	for _, t := range turns {
		fmt.Fprintf(out, "-- turn %d: %s %s\n", t.TurnNumber, t.Command.Type, t.Command.WeaponID)
		logs.print(t.State.Logs)
	}
	if n := len(turns); n > 0 && turns[n-1].State.GameOver {
		fmt.Fprintf(out, "winner: %s\n", turns[n-1].State.Winner)
	}
	return nil
}

func (a *app) backups(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("backups needs a directory")
	}
	paths, err := database.GetBackupDBPaths(args[0])
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "== %s\n", p)
		b, err := a.openDatabase(p)
		if err != nil {
			a.log.Warn("Skipping unreadable backup", "path", p, "error", err)
			continue
		}
		if err := printBattles(b, 0, out); err != nil {
			return err
		}
	}
	return nil
}
