package remote

import (
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Dialer opens unauthenticated transports to remote hosts. Tests swap in
// a fake; production code uses NewDialer.
type Dialer interface {
	Connect(addr string, timeout time.Duration) (Transport, error)
}

// Transport is an open but not yet authenticated socket.
type Transport interface {
	Authenticate(profile Profile, timeout time.Duration) (Client, error)
	Close() error
}

// Client is an authenticated connection that can open channels.
type Client interface {
	OpenShell(termType string, rows, cols int) (Shell, error)
	OpenFileChannel() (io.ReadWriteCloser, error)
	Close() error
}

// Shell is an interactive remote shell. Writes go to its input; the two
// output streams are read separately.
type Shell interface {
	io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
}

// NewDialer returns the SSH dialer used outside of tests.
func NewDialer() Dialer {
	return sshDialer{}
}

type sshDialer struct{}

func (sshDialer) Connect(addr string, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return &sshTransport{conn: conn, addr: addr}, nil
}

type sshTransport struct {
	conn net.Conn
	addr string
}

func (t *sshTransport) Authenticate(profile Profile, timeout time.Duration) (Client, error) {
	methods, err := authMethods(profile)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User: profile.Username,
		Auth: methods,
		// TODO: known_hosts verification.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	conn, chans, reqs, err := ssh.NewClientConn(t.conn, t.addr, cfg)
	if err != nil {
		return nil, err
	}
	return &sshClient{client: ssh.NewClient(conn, chans, reqs)}, nil
}

func (t *sshTransport) Close() error {
	return t.conn.Close()
}

// authMethods builds the credential list for a profile. A key that does
// not parse fails the whole attempt.
func authMethods(p Profile) ([]ssh.AuthMethod, error) {
	switch p.AuthType {
	case AuthPassword:
		return []ssh.AuthMethod{ssh.Password(p.Password)}, nil
	case AuthKey:
		var signer ssh.Signer
		var err error
		if p.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(p.PrivateKey, []byte(p.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(p.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", p.AuthType)
	}
}

type sshClient struct {
	client *ssh.Client
}

func (c *sshClient) OpenShell(termType string, rows, cols int) (Shell, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(termType, rows, cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, err
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &sshShell{session: session, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (c *sshClient) OpenFileChannel() (io.ReadWriteCloser, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, err
	}

	if err := session.RequestSubsystem("sftp"); err != nil {
		session.Close()
		return nil, fmt.Errorf("request sftp subsystem: %w", err)
	}

	return &fileChannel{session: session, stdin: stdin, stdout: stdout}, nil
}

func (c *sshClient) Close() error {
	return c.client.Close()
}

type sshShell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
}

func (s *sshShell) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *sshShell) Stdout() io.Reader { return s.stdout }
func (s *sshShell) Stderr() io.Reader { return s.stderr }

func (s *sshShell) Close() error {
	s.stdin.Close()
	return s.session.Close()
}

// fileChannel adapts a subsystem session to a byte pipe for file
// transfer protocols.
type fileChannel struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

func (f *fileChannel) Read(p []byte) (int, error)  { return f.stdout.Read(p) }
func (f *fileChannel) Write(p []byte) (int, error) { return f.stdin.Write(p) }

func (f *fileChannel) Close() error {
	f.stdin.Close()
	return f.session.Close()
}
