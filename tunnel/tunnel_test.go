package tunnel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-zoox/potato/crypto"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/obfs"
	"github.com/go-zoox/potato/protocol"
	"github.com/go-zoox/potato/relay"
)

const testSecret = "8c1f2e5a7b"

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()

	cipher, err := crypto.New(&crypto.Config{Algorithm: crypto.DefaultAlgorithm, Secret: testSecret})
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return cipher
}

// listen starts a loopback listener whose connections go to serve, and
// returns a dialer for it.
func listen(t *testing.T, serve func(conn net.Conn)) network.Dialer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()

	_, port, _ := net.SplitHostPort(l.Addr().String())
	p, _ := strconv.Atoi(port)

	dialer, err := network.NewDialer(&network.DialConfig{Host: "127.0.0.1", Port: p, Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to create dialer: %v", err)
	}
	return dialer
}

func echoTarget(dialed chan<- string) relay.DialFunc {
	return func(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, error) {
		dialed <- net.JoinHostPort(host, strconv.Itoa(int(port)))

		relaySide, targetSide := net.Pipe()
		go func() {
			defer targetSide.Close()
			io.Copy(targetSide, targetSide)
		}()
		return relaySide, nil
	}
}

func TestEndToEnd(t *testing.T) {
	cipher := newTestCipher(t)
	payload := []byte(strings.Repeat("potato over the wire ", 4000))

	for _, mode := range []string{protocol.ModeHandshake, protocol.ModeInline} {
		for _, name := range []string{obfs.None, obfs.XOR, obfs.HTTP} {
			t.Run(mode+"/"+name, func(t *testing.T) {
				relayObfs, _ := obfs.New(&obfs.Config{Name: name, Secret: testSecret, Role: obfs.RoleRelay})
				clientObfs, _ := obfs.New(&obfs.Config{Name: name, Secret: testSecret, Role: obfs.RoleClient})

				dialed := make(chan string, 1)
				h, err := relay.New(&relay.Config{
					Cipher:     cipher,
					Obfuscator: relayObfs,
					Mode:       mode,
					Dial:       echoTarget(dialed),
				})
				if err != nil {
					t.Fatalf("failed to create relay: %v", err)
				}

				dialer := listen(t, func(conn net.Conn) {
					h.Serve(context.Background(), "relay", conn)
				})

				tun, err := New(&Config{
					Cipher:       cipher,
					Dialer:       dialer,
					Obfuscator:   clientObfs,
					Mode:         mode,
					ReplyTimeout: 2 * time.Second,
				})
				if err != nil {
					t.Fatalf("failed to create tunnel: %v", err)
				}

				session, err := tun.Connect(context.Background(), "example.com", 443)
				if err != nil {
					t.Fatalf("failed to connect: %v", err)
				}
				if session.Sig() != protocol.ReplySucceeded {
					t.Fatalf("Sig not match, expect %s, but got %s", protocol.ReplySucceeded, session.Sig())
				}

				app, local := net.Pipe()
				defer app.Close()

				done := make(chan error, 1)
				go func() { done <- session.Proxy(context.Background(), local) }()

				go app.Write(payload)

				echoed := make([]byte, len(payload))
				app.SetReadDeadline(time.Now().Add(5 * time.Second))
				if _, err := io.ReadFull(app, echoed); err != nil {
					t.Fatalf("failed to read echo: %v", err)
				}
				if !bytes.Equal(echoed, payload) {
					t.Fatalf("payload not match")
				}

				select {
				case target := <-dialed:
					if target != "example.com:443" {
						t.Fatalf("target not match, expect example.com:443, but got %s", target)
					}
				default:
					t.Fatalf("relay never dialed the target")
				}

				if session.State() != StateProxying {
					t.Fatalf("State not match, expect %s, but got %s", StateProxying, session.State())
				}

				app.Close()
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatalf("proxy did not return after local close")
				}

				if session.State() != StateClosed {
					t.Fatalf("State not match, expect %s, but got %s", StateClosed, session.State())
				}
			})
		}
	}
}

// fakeRelay answers the handshake with code and then calls after.
func fakeRelay(t *testing.T, cipher *crypto.Cipher, code protocol.ReplyCode, after func(conn net.Conn)) network.Dialer {
	codec, _ := protocol.NewCodec(cipher)

	return listen(t, func(conn net.Conn) {
		defer conn.Close()

		prefix := make([]byte, protocol.RequestPrefixLength)
		if _, err := io.ReadFull(conn, prefix); err != nil {
			return
		}
		n, _, err := codec.RequestLength(prefix)
		if err != nil {
			return
		}
		if _, err := io.ReadFull(conn, make([]byte, n-len(prefix))); err != nil {
			return
		}

		reply, _ := codec.EncodeConnectReply(code)
		conn.Write(reply)

		if after != nil {
			after(conn)
		}
	})
}

func TestRemoteResetClosesLocal(t *testing.T) {
	cipher := newTestCipher(t)

	request := []byte("request body, the response never completes")

	dialer := fakeRelay(t, cipher, protocol.ReplySucceeded, func(conn net.Conn) {
		encrypter, _ := cipher.NewEncrypter()
		conn.Write(encrypter.XOR([]byte("partial respo")))
		io.ReadFull(conn, make([]byte, len(request)))
		// drop the connection mid-payload
	})

	tun, _ := New(&Config{Cipher: cipher, Dialer: dialer})
	session, err := tun.Connect(context.Background(), "example.com", 443)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	app, local := net.Pipe()
	defer app.Close()

	done := make(chan error, 1)
	go func() { done <- session.Proxy(context.Background(), local) }()

	go app.Write(request)

	app.SetReadDeadline(time.Now().Add(5 * time.Second))
	got, err := io.ReadAll(app)
	if err != nil {
		t.Fatalf("expect local channel to be closed cleanly, but got %v", err)
	}
	if string(got) != "partial respo" {
		t.Fatalf("payload not match, expect %q, but got %q", "partial respo", got)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("proxy did not return after remote reset")
	}
	if session.State() != StateClosed {
		t.Fatalf("State not match, expect %s, but got %s", StateClosed, session.State())
	}
}

func TestRelayRejects(t *testing.T) {
	cipher := newTestCipher(t)
	dialer := fakeRelay(t, cipher, protocol.ReplyConnectionRefused, nil)

	tun, _ := New(&Config{Cipher: cipher, Dialer: dialer})
	session, err := tun.Connect(context.Background(), "example.com", 443)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expect ErrRejected, but got %v", err)
	}

	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Code != protocol.ReplyConnectionRefused {
		t.Fatalf("expect connection refused, but got %v", err)
	}
	if session.Sig() != protocol.ReplyConnectionRefused {
		t.Fatalf("Sig not match, expect %s, but got %s", protocol.ReplyConnectionRefused, session.Sig())
	}
	if session.State() != StateClosed {
		t.Fatalf("State not match, expect %s, but got %s", StateClosed, session.State())
	}
}

func TestReplyTimeout(t *testing.T) {
	cipher := newTestCipher(t)

	hold := make(chan struct{})
	defer close(hold)
	dialer := listen(t, func(conn net.Conn) {
		defer conn.Close()
		<-hold
	})

	tun, _ := New(&Config{Cipher: cipher, Dialer: dialer, ReplyTimeout: 100 * time.Millisecond})
	_, err := tun.Connect(context.Background(), "example.com", 443)
	if !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("expect ErrReplyTimeout, but got %v", err)
	}
}

type failingDialer struct {
	attempts int
}

func (d *failingDialer) Dial(ctx context.Context) (net.Conn, error) {
	d.attempts++
	return nil, errors.New("connection refused")
}

func (d *failingDialer) String() string { return "failing" }

func TestDialRetries(t *testing.T) {
	dialer := &failingDialer{}
	tun, _ := New(&Config{
		Cipher:            newTestCipher(t),
		Dialer:            dialer,
		DialRetries:       2,
		DialRetryInterval: time.Millisecond,
	})

	if _, err := tun.Connect(context.Background(), "example.com", 443); err == nil {
		t.Fatalf("expect dial error")
	}
	if dialer.attempts < 3 {
		t.Fatalf("attempts not match, expect at least 3, but got %d", dialer.attempts)
	}
}

func TestNoDialRetries(t *testing.T) {
	dialer := &failingDialer{}
	tun, _ := New(&Config{Cipher: newTestCipher(t), Dialer: dialer})

	if _, err := tun.Connect(context.Background(), "example.com", 443); err == nil {
		t.Fatalf("expect dial error")
	}
	if dialer.attempts != 1 {
		t.Fatalf("attempts not match, expect 1, but got %d", dialer.attempts)
	}
}

// deadlineConn cancels the handshake context as soon as the reply has been
// read, and counts deadline changes.
type deadlineConn struct {
	net.Conn
	cancel    context.CancelFunc
	read      int
	deadlines atomic.Int64
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.read += n
	if c.read >= protocol.ReplyLength {
		c.cancel()
	}
	return n, err
}

func (c *deadlineConn) SetReadDeadline(t time.Time) error {
	c.deadlines.Add(1)
	return c.Conn.SetReadDeadline(t)
}

type wrapDialer struct {
	network.Dialer
	wrap func(conn net.Conn) net.Conn
}

func (d *wrapDialer) Dial(ctx context.Context) (net.Conn, error) {
	conn, err := d.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return d.wrap(conn), nil
}

func TestCancelWhileReplyArrives(t *testing.T) {
	cipher := newTestCipher(t)

	hold := make(chan struct{})
	defer close(hold)
	relayDialer := fakeRelay(t, cipher, protocol.ReplySucceeded, func(conn net.Conn) {
		<-hold
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wrapped *deadlineConn
	dialer := &wrapDialer{
		Dialer: relayDialer,
		wrap: func(conn net.Conn) net.Conn {
			wrapped = &deadlineConn{Conn: conn, cancel: cancel}
			return wrapped
		},
	}

	tun, _ := New(&Config{Cipher: cipher, Dialer: dialer})
	session, err := tun.Connect(ctx, "example.com", 443)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, but got %v", err)
	}
	if session.State() != StateClosed {
		t.Fatalf("State not match, expect %s, but got %s", StateClosed, session.State())
	}

	// nothing touches the deadline once Connect has returned
	seen := wrapped.deadlines.Load()
	time.Sleep(50 * time.Millisecond)
	if wrapped.deadlines.Load() != seen {
		t.Fatalf("deadline changed after Connect returned")
	}
}

func TestModeIsNotWrittenBack(t *testing.T) {
	cfg := &Config{Cipher: newTestCipher(t), Dialer: &failingDialer{}}
	tun, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create tunnel: %v", err)
	}

	if tun.Mode() != protocol.ModeHandshake {
		t.Fatalf("Mode not match, expect %s, but got %s", protocol.ModeHandshake, tun.Mode())
	}
	if cfg.Mode != "" {
		t.Fatalf("expect caller config to be untouched, but Mode is %s", cfg.Mode)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, crypto.ErrConfig) {
		t.Fatalf("expect ErrConfig, but got %v", err)
	}
	if _, err := New(&Config{Cipher: newTestCipher(t)}); !errors.Is(err, crypto.ErrConfig) {
		t.Fatalf("expect ErrConfig for missing dialer, but got %v", err)
	}
	if _, err := New(&Config{Dialer: &failingDialer{}}); !errors.Is(err, crypto.ErrConfig) {
		t.Fatalf("expect ErrConfig for missing cipher, but got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingReply.String() != "awaiting-reply" {
		t.Fatalf("String not match, got %s", StateAwaitingReply)
	}
	if State(9).String() != "unknown(9)" {
		t.Fatalf("String not match, got %s", State(9))
	}
}
