package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/agent"
	"github.com/newtron-network/switchd/pkg/cli"
	"github.com/newtron-network/switchd/pkg/config"
	"github.com/newtron-network/switchd/pkg/device"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Program the switch configuration once",
	Long: `Apply reads the switch configuration, reconciles the hardware with it and
saves the warm boot state, so the next run only programs what changed.

With --dry-run the configuration is programmed into an in-memory switch
and the resulting hardware objects are listed.

Examples:
  switchd apply -c leaf1.yaml
  switchd apply -c leaf1.yaml --dry-run
  switchd apply -c leaf1.yaml --ssh-host leaf1-mgmt --policy abort`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		sess, err := connect(ctx, cfg.Name)
		if err != nil {
			return err
		}
		defer sess.Close()

		applyErr := applyConfig(ctx, sess.agent, cfg)
		if sess.dryRun {
			printHardware(sess.agent.Table())
			return applyErr
		}
		if err := sess.agent.SaveWarmBoot(stateDir); err != nil {
			return errors.Join(applyErr, err)
		}
		return applyErr
	},
}

var (
	resyncInterval time.Duration
	linkInterval   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long: `Run applies the switch configuration and keeps running. SIGHUP reloads
the configuration file; SIGINT and SIGTERM save the warm boot state and
exit. While the hardware is known to be out of line with the state, a
resync is retried every --resync-interval. Port link state is read from
STATE_DB every --link-interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if resyncInterval <= 0 || linkInterval <= 0 {
			return fmt.Errorf("--resync-interval and --link-interval must be positive")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess, err := connect(ctx, cfg.Name)
		if err != nil {
			return err
		}
		defer sess.Close()
		a := sess.agent

		if err := applyConfig(ctx, a, cfg); err != nil {
			util.Errorf("initial apply: %v", err)
		}

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		ticker := time.NewTicker(resyncInterval)
		defer ticker.Stop()
		var linkTick <-chan time.Time
		if sess.links != nil {
			lt := time.NewTicker(linkInterval)
			defer lt.Stop()
			linkTick = lt.C
		}

		log := util.WithSwitch(cfg.Name)
		log.Info("agent running")
		for {
			select {
			case <-ctx.Done():
				log.Info("shutting down")
				if sess.dryRun {
					return nil
				}
				return a.SaveWarmBoot(stateDir)
			case <-hup:
				next, err := loadConfig()
				if err != nil {
					log.WithError(err).Error("reload failed, keeping current state")
					continue
				}
				if err := applyConfig(ctx, a, next); err != nil {
					log.WithError(err).Error("reload failed")
				}
			case <-ticker.C:
				if !a.Dirty() {
					continue
				}
				if _, err := a.Resync(ctx); err != nil {
					log.WithError(err).Warn("resync failed")
				} else {
					log.Info("resync complete")
				}
			case <-linkTick:
				links, err := sess.links.PortStates(ctx)
				if err != nil {
					log.WithError(err).Warn("reading link state")
					continue
				}
				_, err = a.Update(ctx, func(s *state.SwitchState) error {
					return device.ApplyLinkStates(s, links)
				})
				if err != nil {
					log.WithError(err).Warn("recording link state")
				}
			}
		}
	},
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reprogram the saved state into the hardware",
	Long: `Resync restores the warm boot state and drives the hardware to it,
recreating whatever is missing. Objects that are already programmed are
left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			return fmt.Errorf("resync needs a real switch")
		}
		ctx := context.Background()
		name := hostname()
		if cfg, err := loadConfig(); err == nil {
			name = cfg.Name
		}
		sess, err := connect(ctx, name)
		if err != nil {
			return err
		}
		defer sess.Close()

		res, err := sess.agent.Resync(ctx)
		printFailures(res)
		if err != nil {
			return err
		}
		fmt.Println(cli.Green("Hardware in sync."))
		return sess.agent.SaveWarmBoot(stateDir)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{applyCmd, runCmd, resyncCmd} {
		addConnectFlags(cmd)
	}
	runCmd.Flags().DurationVar(&resyncInterval, "resync-interval", 30*time.Second, "Retry interval while hardware is out of sync")
	runCmd.Flags().DurationVar(&linkInterval, "link-interval", 5*time.Second, "Port link state polling interval")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config required: use -c <file> or 'switchd settings set config_path <file>'")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = hostname()
	}
	return cfg, nil
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "switch"
}

// applyConfig makes cfg the agent's state, repairing the hardware first if
// an earlier failure left it out of line.
func applyConfig(ctx context.Context, a *agent.Agent, cfg *config.Config) error {
	if a.Dirty() {
		if res, err := a.Resync(ctx); err != nil {
			printFailures(res)
			return err
		}
	}

	old := a.State()
	res, err := a.Update(ctx, cfg.ApplyTo)
	if err != nil {
		var applyErr *agent.ApplyError
		if errors.As(err, &applyErr) {
			printFailures(applyErr.Result)
			if !applyErr.RolledBack() {
				fmt.Println(cli.Red("Rollback incomplete; hardware will be resynced."))
			}
		}
		return err
	}
	changes := agent.Summarize(state.NewStateDelta(old, a.State()))
	if len(changes) == 0 {
		fmt.Println("No changes.")
		return nil
	}
	t := cli.NewTable("ENTITY", "ADDED", "REMOVED", "CHANGED")
	for _, c := range changes {
		t.Row(c.Entity, fmt.Sprint(c.Added), fmt.Sprint(c.Removed), fmt.Sprint(c.Changed))
	}
	t.Flush()
	if res.OK() {
		fmt.Println(cli.Green("Changes applied successfully."))
	}
	return nil
}

func printFailures(res *manager.ReconcileResult) {
	if res == nil || res.OK() {
		return
	}
	t := cli.NewTable("ENTITY", "STATUS", "ERROR")
	for _, f := range res.Failures {
		for _, err := range f.Errors {
			t.Row(f.Type, cli.Status("failed"), err.Error())
		}
	}
	t.Flush()
	if res.Aborted {
		fmt.Println(cli.Yellow("Reconcile aborted at the first failure."))
	}
}
