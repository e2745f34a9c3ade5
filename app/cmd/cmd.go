// Package cmd has all commands of jobtrail. Each command embeds CommonOpts set by main
// before Execute is called.
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/umputun/jobtrail/app/storage"
)

// CommonOpts sets externally from main, shared across all commands
type CommonOpts struct {
	Ctx   context.Context
	Store storage.Storage
	User  string
	Out   io.Writer
}

// CommonOptionsCommander extends flags.Commander with SetCommon
// All commands should implement this interface
type CommonOptionsCommander interface {
	SetCommon(commonOpts CommonOpts)
	Execute(args []string) error
}

// SetCommon satisfies CommonOptionsCommander interface and sets common option fields
// The method called by main for each command
func (c *CommonOpts) SetCommon(commonOpts CommonOpts) {
	c.Ctx = commonOpts.Ctx
	c.Store = commonOpts.Store
	c.User = commonOpts.User
	c.Out = commonOpts.Out
	if c.Ctx == nil {
		c.Ctx = context.Background()
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
}
