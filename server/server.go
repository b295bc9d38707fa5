package server

import (
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/redcon"

	"github.com/IceFireDB/IceFireDB-Snapshot/db"
	"github.com/IceFireDB/IceFireDB-Snapshot/utils"
)

// Server serves a db.DB over the Redis protocol.
type Server struct {
	db *db.DB

	mu     sync.Mutex
	ln     net.Listener
	conns  map[string]net.Conn
	closed bool
}

func New(d *db.DB) *Server {
	return &Server{
		db:    d,
		conns: make(map[string]net.Conn),
	}
}

// client is the per-connection state.
type client struct {
	id        string
	snapshots map[uint64]struct{}
}

// ListenAndServe listens on addr and serves until Close is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	logrus.WithField("addr", ln.Addr().String()).Info("redis service listening")

	err := redcon.Serve(ln,
		// handle commands
		func(conn redcon.Conn, cmd redcon.Command) {
			var args [][]string
			args = append(args, commandToArgs(cmd))
			for _, cmd := range conn.ReadPipeline() {
				args = append(args, commandToArgs(cmd))
			}
			utils.RedisCmdRewrite(args)
			s.execArgs(conn, args)
		},
		// handle opened connection
		func(conn redcon.Conn) bool {
			c := &client{
				id:        uuid.New().String(),
				snapshots: make(map[uint64]struct{}),
			}

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return false
			}
			s.conns[c.id] = conn.NetConn()
			conn.SetContext(c)

			logrus.WithFields(logrus.Fields{
				"conn": c.id,
				"addr": conn.RemoteAddr(),
			}).Debug("connection opened")
			return true
		},
		// handle closed connection
		func(conn redcon.Conn, err error) {
			if conn.Context() == nil {
				return
			}
			c := conn.Context().(*client)

			s.mu.Lock()
			delete(s.conns, c.id)
			s.mu.Unlock()

			// Snapshots the client did not release die with the connection.
			for id := range c.snapshots {
				s.db.ReleaseSnapshot(id)
			}
			logrus.WithFields(logrus.Fields{
				"conn":      c.id,
				"snapshots": len(c.snapshots),
			}).Debug("connection closed")
		},
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return err
}

// Close stops accepting connections and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for _, nc := range s.conns {
		nc.Close()
	}
	return err
}

func commandToArgs(cmd redcon.Command) []string {
	args := make([]string, len(cmd.Args))
	args[0] = strings.ToLower(string(cmd.Args[0]))
	for i := 1; i < len(cmd.Args); i++ {
		args[i] = string(cmd.Args[i])
	}
	return args
}

func (s *Server) execArgs(conn redcon.Conn, args [][]string) {
	c := conn.Context().(*client)
	for _, args := range args {
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" {
			conn.WriteString("OK")
			conn.Close()
			return
		}

		var resp interface{}
		var err error
		if fn, ok := commands[args[0]]; ok {
			resp, err = fn(s, c, args)
		} else {
			err = errors.Errorf("%s '%s'", ErrUnknownCommand, args[0])
		}
		writeReply(conn, resp, err)
	}
}

func writeReply(conn redcon.Conn, resp interface{}, err error) {
	if err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}
	conn.WriteAny(resp)
}
