package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/worker"
)

// maxLineBytes bounds one protocol line; large scenarios with custom priors
// stay well under this.
const maxLineBytes = 4 << 20

// envelope is the inbound protocol frame: an operation tag plus its payload.
type envelope struct {
	// Op is "start" or "cancel".
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// session owns one client connection: it reads request envelopes line by
// line and writes response envelopes. Jobs run on their own goroutine so the
// reader stays responsive to cancel requests; writes are serialized.
type session struct {
	conn    net.Conn
	manager *worker.Manager
	logger  *zap.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex
	jobs    sync.WaitGroup
}

func newSession(conn net.Conn, manager *worker.Manager, logger *zap.Logger, readTimeout, writeTimeout time.Duration) *session {
	return &session{
		conn:         conn,
		manager:      manager,
		logger:       logger,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// run processes protocol lines until the client disconnects or the idle
// read deadline expires, then drains in-flight jobs.
func (s *session) run() error {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for {
		if s.readTimeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				break
			}
		}
		if !scanner.Scan() {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.dispatch(line)
	}

	s.jobs.Wait()
	return scanner.Err()
}

// dispatch decodes and routes one protocol line.
func (s *session) dispatch(line []byte) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		s.send(worker.Response{Type: worker.TypeError, Message: "malformed envelope: " + err.Error()})
		return
	}

	switch env.Op {
	case "start":
		var req worker.Request
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.send(worker.Response{Type: worker.TypeError, Message: "malformed request: " + err.Error()})
			return
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}
		s.jobs.Add(1)
		go func() {
			defer s.jobs.Done()
			s.manager.Start(req, s.send)
		}()
	case "cancel":
		var c worker.CancelRequest
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			s.send(worker.Response{Type: worker.TypeError, Message: "malformed cancel: " + err.Error()})
			return
		}
		s.manager.Cancel(c.RequestID)
	default:
		s.send(worker.Response{Type: worker.TypeError, Message: "unknown op " + env.Op})
	}
}

// send writes one response line. Safe for concurrent use by the reader and
// job goroutines.
func (s *session) send(r worker.Response) {
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("marshaling response", zap.Error(err), zap.String("request_id", r.RequestID))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return
		}
	}
	if _, err := s.conn.Write(append(data, '\n')); err != nil {
		s.logger.Debug("writing response", zap.Error(err), zap.String("request_id", r.RequestID))
	}
}
