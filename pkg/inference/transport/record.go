package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-go-golems/polyagent/pkg/security"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RecordingTransport persists every exchange with the vendor as
// <dir>/call-NNNNNN-request.json and call-NNNNNN-response.json. Credentials
// are redacted from URLs and headers before writing.
//
// Recording failures are logged and never fail the call.
type RecordingTransport struct {
	inner Transport
	dir   string

	mu  sync.Mutex
	seq int
}

var _ Transport = (*RecordingTransport)(nil)

func NewRecordingTransport(inner Transport, dir string) (*RecordingTransport, error) {
	if inner == nil {
		return nil, errors.New("inner transport cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create record directory %s", dir)
	}
	return &RecordingTransport{inner: inner, dir: dir}, nil
}

var sensitiveHeaders = map[string]bool{
	"authorization":  true,
	"x-api-key":      true,
	"api-key":        true,
	"x-goog-api-key": true,
}

func redactHeaders(h map[string]string) map[string]string {
	ret := make(map[string]string, len(h))
	for k, v := range h {
		if sensitiveHeaders[strings.ToLower(k)] {
			v = "REDACTED"
		}
		ret[k] = v
	}
	return ret
}

func jsonRawOrString(b []byte) interface{} {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}

func (r *RecordingTransport) next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

func (r *RecordingTransport) write(name string, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("could not encode recorded call")
		return
	}
	if err := os.WriteFile(filepath.Join(r.dir, name), b, 0o644); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("could not record call")
	}
}

func (r *RecordingTransport) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	seq := r.next()
	r.write(fmt.Sprintf("call-%06d-request.json", seq), map[string]interface{}{
		"seq":     seq,
		"method":  req.Method,
		"url":     security.RedactURL(req.URL),
		"headers": redactHeaders(req.Headers),
		"body":    jsonRawOrString(req.Body),
	})

	resp, err := r.inner.Fetch(ctx, req)

	env := map[string]interface{}{"seq": seq}
	if err != nil {
		env["error"] = err.Error()
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			env["status"] = statusErr.StatusCode
			env["body"] = jsonRawOrString(statusErr.Body)
		}
	} else {
		env["body"] = resp
	}
	r.write(fmt.Sprintf("call-%06d-response.json", seq), env)

	return resp, err
}
