package obfs

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/go-zoox/potato/pipe"
	"github.com/pkg/errors"
)

const (
	DefaultHTTPHost = "www.bing.com"
	DefaultHTTPPath = "/upload"

	maxHTTPHeaderBytes = 8 * 1024
	maxHTTPBodyBytes   = 1 << 20
)

var headerTerminator = []byte("\r\n\r\n")

// httpObfuscator wraps each chunk in an HTTP/1.1 message. Clients send POST
// requests, the relay answers with 200 responses.
type httpObfuscator struct {
	role Role
	host string
	path string
}

func newHTTP(cfg *Config) *httpObfuscator {
	o := &httpObfuscator{
		role: cfg.Role,
		host: cfg.Host,
		path: cfg.Path,
	}
	if o.host == "" {
		o.host = DefaultHTTPHost
	}
	if o.path == "" {
		o.path = DefaultHTTPPath
	}
	return o
}

func (o *httpObfuscator) Name() string { return HTTP }

func (o *httpObfuscator) ApplyDisguise() pipe.Transform {
	return pipe.TransformFunc(func(chunk []byte, emit func([]byte) error) error {
		if len(chunk) == 0 {
			return nil
		}

		var b bytes.Buffer
		if o.role == RoleClient {
			b.WriteString("POST ")
			b.WriteString(o.path)
			b.WriteString(" HTTP/1.1\r\n")
			b.WriteString("Host: ")
			b.WriteString(o.host)
			b.WriteString("\r\n")
		} else {
			b.WriteString("HTTP/1.1 200 OK\r\n")
		}
		b.WriteString("Content-Type: application/octet-stream\r\n")
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(chunk)))
		b.WriteString("\r\n\r\n")
		b.Write(chunk)

		return emit(b.Bytes())
	})
}

func (o *httpObfuscator) RemoveDisguise() pipe.Transform {
	return &httpUnwrapper{}
}

// httpUnwrapper reassembles HTTP messages split across any number of chunks
// and emits their bodies in order.
type httpUnwrapper struct {
	buf []byte
}

func (u *httpUnwrapper) Transform(chunk []byte, emit func([]byte) error) error {
	u.buf = append(u.buf, chunk...)

	for {
		end := bytes.Index(u.buf, headerTerminator)
		if end < 0 {
			if len(u.buf) > maxHTTPHeaderBytes {
				return errors.Wrap(ErrMalformedDisguise, "http header too large")
			}
			return nil
		}

		length, err := parseContentLength(u.buf[:end])
		if err != nil {
			return err
		}

		start := end + len(headerTerminator)
		if len(u.buf) < start+length {
			return nil
		}

		body := make([]byte, length)
		copy(body, u.buf[start:start+length])
		u.buf = u.buf[start+length:]

		if length > 0 {
			if err := emit(body); err != nil {
				return err
			}
		}
	}
}

func parseContentLength(header []byte) (int, error) {
	lines := strings.Split(string(header), "\r\n")

	start := lines[0]
	if !strings.HasPrefix(start, "HTTP/1.") && !strings.Contains(start, " HTTP/1.") {
		return 0, errors.Wrapf(ErrMalformedDisguise, "invalid start line %q", start)
	}

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, errors.Wrapf(ErrMalformedDisguise, "invalid header line %q", line)
		}
		if !strings.EqualFold(strings.TrimSpace(key), "content-length") {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, errors.Wrapf(ErrMalformedDisguise, "invalid content-length %q", value)
		}
		if n > maxHTTPBodyBytes {
			return 0, errors.Wrapf(ErrMalformedDisguise, "http body too large (%d bytes)", n)
		}
		return n, nil
	}

	return 0, errors.Wrap(ErrMalformedDisguise, "missing content-length")
}
