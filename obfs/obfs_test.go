package obfs

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-zoox/potato/pipe"
)

func run(t *testing.T, tr pipe.Transform, chunks ...[]byte) []byte {
	t.Helper()

	var out []byte
	for _, chunk := range chunks {
		if tr == nil {
			out = append(out, chunk...)
			continue
		}

		if err := tr.Transform(chunk, func(b []byte) error {
			out = append(out, b...)
			return nil
		}); err != nil {
			t.Fatalf("transform failed: %v", err)
		}
	}
	return out
}

func splitEvery(b []byte, n int) [][]byte {
	var parts [][]byte
	for len(b) > n {
		parts = append(parts, b[:n])
		b = b[n:]
	}
	return append(parts, b)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", None, XOR, HTTP} {
		o, err := New(&Config{Name: name, Secret: "potato"})
		if err != nil {
			t.Fatalf("failed to create %q: %v", name, err)
		}

		expect := name
		if expect == "" {
			expect = None
		}
		if o.Name() != expect {
			t.Fatalf("Name not match, expect %s, but got %s", expect, o.Name())
		}
	}

	if _, err := New(&Config{Name: "tls-mimic"}); err == nil {
		t.Fatalf("expect error for unsupported obfuscation")
	}
	if _, err := New(&Config{Name: XOR}); err == nil {
		t.Fatalf("expect error for xor without secret")
	}
}

func TestNoneIsPassThrough(t *testing.T) {
	o, _ := New(nil)
	if o.ApplyDisguise() != nil || o.RemoveDisguise() != nil {
		t.Fatalf("expect none to insert no stages")
	}
}

func TestRoundTripAcrossSplits(t *testing.T) {
	payload := []byte(strings.Repeat("potato tunnel payload ", 300))

	for _, name := range []string{XOR, HTTP} {
		for _, role := range []Role{RoleClient, RoleRelay} {
			o, err := New(&Config{Name: name, Secret: "potato", Role: role})
			if err != nil {
				t.Fatalf("[%s] failed to create: %v", name, err)
			}

			disguised := run(t, o.ApplyDisguise(), splitEvery(payload, 1000)...)
			if bytes.Contains(disguised, []byte("potato tunnel")) && name == XOR {
				t.Fatalf("[%s] payload visible after disguise", name)
			}

			for _, size := range []int{1, 3, 17, 512, len(disguised)} {
				recovered := run(t, o.RemoveDisguise(), splitEvery(disguised, size)...)
				if !bytes.Equal(recovered, payload) {
					t.Fatalf("[%s][split %d] payload not match", name, size)
				}
			}
		}
	}
}

func TestHTTPDisguiseShape(t *testing.T) {
	client, _ := New(&Config{Name: HTTP, Role: RoleClient, Host: "example.org", Path: "/api"})
	out := string(run(t, client.ApplyDisguise(), []byte("hello")))

	expect := "POST /api HTTP/1.1\r\nHost: example.org\r\nContent-Type: application/octet-stream\r\nContent-Length: 5\r\n\r\nhello"
	if out != expect {
		t.Fatalf("request not match, expect %q, but got %q", expect, out)
	}

	relay, _ := New(&Config{Name: HTTP, Role: RoleRelay})
	out = string(run(t, relay.ApplyDisguise(), []byte("hi")))
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(out, "\r\n\r\nhi") {
		t.Fatalf("response not match, got %q", out)
	}
}

func TestHTTPRemoveRejectsGarbage(t *testing.T) {
	o, _ := New(&Config{Name: HTTP})

	cases := []string{
		"SSH-2.0-OpenSSH\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Length: -1\r\n\r\n",
		"HTTP/1.1 200 OK\r\nbroken\r\n\r\n",
	}

	for _, c := range cases {
		err := o.RemoveDisguise().Transform([]byte(c), func([]byte) error { return nil })
		if !errors.Is(err, ErrMalformedDisguise) {
			t.Fatalf("expect ErrMalformedDisguise for %q, but got %v", c, err)
		}
	}

	err := o.RemoveDisguise().Transform(bytes.Repeat([]byte("a"), maxHTTPHeaderBytes+1), func([]byte) error { return nil })
	if !errors.Is(err, ErrMalformedDisguise) {
		t.Fatalf("expect ErrMalformedDisguise for oversized header, but got %v", err)
	}
}
