package server

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/tidwall/redcon"

	"github.com/IceFireDB/IceFireDB-Snapshot/snapshot"
)

type command func(s *Server, c *client, args []string) (interface{}, error)

var commands map[string]command

func init() {
	commands = map[string]command{
		"ping":     cmdPING,
		"get":      cmdGET,
		"set":      cmdSET,
		"del":      cmdDEL,
		"snapshot": cmdSNAPSHOT,
	}
}

func cmdPING(s *Server, c *client, args []string) (interface{}, error) {
	switch len(args) {
	case 1:
		return redcon.SimpleString("PONG"), nil
	case 2:
		return args[1], nil
	default:
		return nil, ErrWrongNumArgs
	}
}

func cmdGET(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	v, err := s.db.Get([]byte(args[1]), snapshot.GetOptions{})
	return valueReply(v, err)
}

func cmdSET(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, ErrWrongNumArgs
	}
	if err := s.db.Put([]byte(args[1]), []byte(args[2])); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}

func cmdDEL(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, ErrWrongNumArgs
	}
	var n int
	for _, key := range args[1:] {
		_, err := s.db.Get([]byte(key), snapshot.GetOptions{DontFillCache: true})
		switch {
		case err == nil:
			n++
		case errors.Is(err, snapshot.ErrKeyNotFound):
			continue
		default:
			return nil, err
		}
		if err := s.db.Delete([]byte(key)); err != nil {
			return nil, err
		}
	}
	return redcon.SimpleInt(n), nil
}

// cmdSNAPSHOT dispatches SNAPSHOT subcommands.
func cmdSNAPSHOT(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, ErrWrongNumArgs
	}
	switch strings.ToLower(args[1]) {
	case "create":
		return snapshotCreate(s, c, args[2:])
	case "get":
		return snapshotGet(s, c, args[2:])
	case "release":
		return snapshotRelease(s, c, args[2:])
	case "list":
		return snapshotList(s, c, args[2:])
	case "info":
		return snapshotInfo(s, c, args[2:])
	default:
		return nil, errors.Errorf("unknown subcommand '%s'", args[1])
	}
}

// SNAPSHOT CREATE [FILLCACHE b] [KEYASBUFFER b] [VALUEASBUFFER b]
func snapshotCreate(s *Server, c *client, args []string) (interface{}, error) {
	if len(args)%2 != 0 {
		return nil, ErrSyntax
	}
	opts := snapshot.DefaultOptions()
	for i := 0; i < len(args); i += 2 {
		b, err := cast.ToBoolE(args[i+1])
		if err != nil {
			return nil, ErrSyntax
		}
		switch strings.ToLower(args[i]) {
		case "fillcache":
			opts.FillCache = b
		case "keyasbuffer":
			opts.KeyAsBuffer = b
		case "valueasbuffer":
			opts.ValueAsBuffer = b
		default:
			return nil, ErrSyntax
		}
	}

	snap, err := s.db.NewSnapshot(opts)
	if err != nil {
		return nil, err
	}
	c.snapshots[snap.ID()] = struct{}{}
	return redcon.SimpleInt(snap.ID()), nil
}

// SNAPSHOT GET id key [ASBUFFER b]
//
// ASBUFFER selects the Value encoding; RESP carries both encodings as the
// same bulk reply, so clients see no difference on the wire.
func snapshotGet(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 && len(args) != 4 {
		return nil, ErrWrongNumArgs
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	var opts snapshot.GetOptions
	if len(args) == 4 {
		if strings.ToLower(args[2]) != "asbuffer" {
			return nil, ErrSyntax
		}
		b, err := cast.ToBoolE(args[3])
		if err != nil {
			return nil, ErrSyntax
		}
		opts.ValueEncoding = snapshot.EncodingFor(b)
	}
	v, err := s.db.SnapshotGet(id, []byte(args[1]), opts)
	return valueReply(v, err)
}

// SNAPSHOT RELEASE id
func snapshotRelease(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	s.db.ReleaseSnapshot(id)
	delete(c.snapshots, id)
	return redcon.SimpleString("OK"), nil
}

func snapshotList(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 0 {
		return nil, ErrWrongNumArgs
	}
	ids := s.db.Snapshots()
	resp := make([]interface{}, len(ids))
	for i, id := range ids {
		resp[i] = redcon.SimpleInt(id)
	}
	return resp, nil
}

// SNAPSHOT INFO id replies with field/value pairs.
func snapshotInfo(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	snap, err := s.db.Snapshot(id)
	if err != nil {
		return nil, err
	}
	info := snap.Info()
	return []interface{}{
		"id", redcon.SimpleInt(info.ID),
		"state", info.State.String(),
		"fillcache", boolInt(info.Options.FillCache),
		"keyasbuffer", boolInt(info.Options.KeyAsBuffer),
		"valueasbuffer", boolInt(info.Options.ValueAsBuffer),
		"pending", redcon.SimpleInt(info.PendingReads),
	}, nil
}

func parseID(arg string) (uint64, error) {
	id, err := cast.ToUint64E(arg)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

func valueReply(v snapshot.Value, err error) (interface{}, error) {
	if errors.Is(err, snapshot.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func boolInt(b bool) redcon.SimpleInt {
	if b {
		return 1
	}
	return 0
}
