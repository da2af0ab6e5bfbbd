// Package device reaches the switch's Redis when the agent runs off-box.
package device

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/switchd/pkg/util"
)

// TunnelConfig describes an SSH tunnel to the switch.
type TunnelConfig struct {
	Host     string
	Port     int // default 22
	User     string
	Password string
	// KnownHostsFile verifies the host key. Without it the key is not
	// checked at all.
	KnownHostsFile string
	// RemoteAddr is the address forwarded to, as seen from the switch.
	// Defaults to 127.0.0.1:6379.
	RemoteAddr string
	Timeout    time.Duration
}

func (c TunnelConfig) sshAddr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c TunnelConfig) remoteAddr() string {
	if c.RemoteAddr != "" {
		return c.RemoteAddr
	}
	return "127.0.0.1:6379"
}

// hostKeyCallback verifies the switch's host key against KnownHostsFile.
func (c TunnelConfig) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		return cb, nil
	}
	// Lab/test environment only; production needs known_hosts verification.
	util.WithField("host", c.sshAddr()).Warn("ssh tunnel: host key verification disabled (InsecureIgnoreHostKey)")
	return ssh.InsecureIgnoreHostKey(), nil
}

// SSHTunnel forwards a local TCP port to a remote address through an SSH connection.
// Redis on the switch listens on loopback only and has no authentication.
type SSHTunnel struct {
	localAddr  string // "127.0.0.1:<port>"
	remoteAddr string
	sshClient  *ssh.Client
	listener   net.Listener
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewSSHTunnel dials SSH and opens a local listener on a random port.
// Connections to the local port are forwarded to cfg.RemoteAddr on the host.
func NewSSHTunnel(cfg TunnelConfig) (*SSHTunnel, error) {
	hostKey, err := cfg.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}

	sshClient, err := ssh.Dial("tcp", cfg.sshAddr(), config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", cfg.sshAddr(), err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &SSHTunnel{
		localAddr:  listener.Addr().String(),
		remoteAddr: cfg.remoteAddr(),
		sshClient:  sshClient,
		listener:   listener,
		done:       make(chan struct{}),
	}
	util.WithFields(map[string]interface{}{
		"host":  cfg.Host,
		"local": t.localAddr,
	}).Info("ssh tunnel up")

	t.wg.Add(1)
	go t.acceptLoop()

	return t, nil
}

// LocalAddr returns the local address (e.g. "127.0.0.1:54321") that forwards
// to the remote address.
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Close stops the listener, closes the SSH connection, and waits for
// all forwarding goroutines to finish.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", t.remoteAddr)
	if err != nil {
		util.WithField("remote", t.remoteAddr).Warnf("tunnel dial: %v", err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}
