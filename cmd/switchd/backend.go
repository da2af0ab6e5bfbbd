package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/switchd/pkg/agent"
	"github.com/newtron-network/switchd/pkg/audit"
	"github.com/newtron-network/switchd/pkg/device"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/sai/asicdb"
	"github.com/newtron-network/switchd/pkg/sai/fakesai"
	"github.com/newtron-network/switchd/pkg/util"
)

// Connection flags shared by the commands that drive hardware.
var (
	dryRun     bool
	redisAddr  string
	asicDB     int
	sshHost    string
	sshUser    string
	knownHosts string
	policyFlag string
)

func addConnectFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Program an in-memory switch instead of ASIC_DB")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "ASIC_DB Redis address (default from settings)")
	cmd.Flags().IntVar(&asicDB, "db", -1, "ASIC_DB database number (default from settings)")
	cmd.Flags().StringVar(&sshHost, "ssh-host", "", "Reach Redis through an SSH tunnel to this host")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "", "SSH user for the tunnel")
	cmd.Flags().StringVar(&knownHosts, "ssh-known-hosts", "", "known_hosts file used to verify the tunnel host key")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Reconcile policy: continue or abort")
}

// session is a connected agent and everything that has to be released with it.
type session struct {
	agent   *agent.Agent
	lister  sai.Lister
	links   *device.StateDBClient
	closers []func() error
	dryRun  bool
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			util.Warnf("close: %v", err)
		}
	}
}

// connect opens the hardware backend and builds an agent on top of it. For
// a real switch the saved warm boot state is restored first, so objects
// programmed by an earlier run are taken over instead of duplicated.
func connect(ctx context.Context, name string) (*session, error) {
	sess := &session{dryRun: dryRun}

	var (
		api      sai.API
		switchID sai.OID
		vr       sai.OID
	)
	if dryRun {
		hw := fakesai.New()
		api, switchID, vr = hw, hw.SwitchID(), hw.DefaultVirtualRouter()
	} else {
		client, err := openASICDB(ctx, sess)
		if err != nil {
			sess.Close()
			return nil, err
		}
		api, switchID, vr = client, client.SwitchID(), client.DefaultVirtualRouter()
	}

	if l, ok := api.(sai.Lister); ok {
		sess.lister = l
	}

	policy, err := resolvePolicy()
	if err != nil {
		sess.Close()
		return nil, err
	}
	opts := []agent.Option{agent.WithPolicy(policy), agent.WithUser(currentUser())}
	if path := userSettings.AuditLog; path != "" && !dryRun {
		logger, err := audit.NewFileLogger(path, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			opts = append(opts, agent.WithAuditLogger(logger))
			sess.closers = append(sess.closers, logger.Close)
		}
	}
	sess.agent = agent.New(name, manager.NewManagerTable(api, switchID, vr), opts...)

	if dryRun {
		return sess, nil
	}
	stats, err := sess.agent.LoadWarmBoot(ctx, stateDir)
	switch {
	case err == nil:
		util.WithFields(map[string]interface{}{
			"restored": stats.Restored,
			"missing":  stats.Missing,
		}).Info("warm boot")
	case errors.Is(err, agent.ErrNoWarmBootState):
		util.Infof("no warm boot state in %s, cold boot", stateDir)
	case sess.agent.Dirty():
		util.Warnf("warm boot incomplete, will resync: %v", err)
	default:
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func openASICDB(ctx context.Context, sess *session) (*asicdb.Client, error) {
	addr := redisAddr
	if addr == "" {
		addr = userSettings.GetRedisAddr()
	}
	db := asicDB
	if db < 0 {
		db = userSettings.GetASICDB()
	}

	host := sshHost
	if host == "" {
		host = userSettings.SSHHost
	}
	if host != "" {
		u := sshUser
		if u == "" {
			u = userSettings.SSHUser
		}
		password, err := sshPassword(u, host)
		if err != nil {
			return nil, err
		}
		hosts := knownHosts
		if hosts == "" {
			hosts = userSettings.SSHKnownHosts
		}
		tun, err := device.NewSSHTunnel(device.TunnelConfig{
			Host:           host,
			Port:           userSettings.GetSSHPort(),
			User:           u,
			Password:       password,
			KnownHostsFile: hosts,
			RemoteAddr:     addr,
			Timeout:        10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		sess.closers = append(sess.closers, tun.Close)
		addr = tun.LocalAddr()
	}

	client := asicdb.New(addr, db)
	sess.closers = append(sess.closers, client.Close)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	// STATE_DB lives on the same Redis; losing it only costs link tracking.
	links := device.NewStateDBClient(addr)
	if err := links.Connect(ctx); err != nil {
		util.Warnf("STATE_DB unavailable, port link state will not be tracked: %v", err)
		links.Close()
	} else {
		sess.links = links
		sess.closers = append(sess.closers, links.Close)
	}
	return client, nil
}

// sshPassword takes the tunnel password from SWITCHD_SSH_PASSWORD or
// prompts for it on the terminal.
func sshPassword(u, host string) (string, error) {
	if p := os.Getenv("SWITCHD_SSH_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("SSH password required: set SWITCHD_SSH_PASSWORD")
	}
	fmt.Fprintf(os.Stderr, "%s@%s's password: ", u, host)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func resolvePolicy() (manager.Policy, error) {
	if policyFlag != "" {
		return manager.ParsePolicy(policyFlag)
	}
	return userSettings.GetPolicy()
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
