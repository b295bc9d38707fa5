package server

import (
	"github.com/pkg/errors"
)

// ErrWrongNumArgs is returned when the arg count is wrong
var ErrWrongNumArgs = errors.New("wrong number of arguments")

// ErrUnknownCommand is returned when a command is not known
var ErrUnknownCommand = errors.New("unknown command")

// ErrSyntax is returned where there was a syntax error
var ErrSyntax = errors.New("syntax error")

// ErrInvalidID is returned when a snapshot id is not a positive integer
var ErrInvalidID = errors.New("invalid snapshot id")

var errServerClosed = errors.New("server closed")
