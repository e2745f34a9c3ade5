package cmd

import (
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrail/app/history"
	"github.com/umputun/jobtrail/app/storage"
)

// ExperimentCommand set of flags and command for experiment creation
type ExperimentCommand struct {
	Name    string   `long:"name" required:"true" description:"experiment name"`
	Command string   `long:"command" required:"true" description:"command executed by experiment jobs"`
	Args    []string `long:"arg" description:"command argument, repeat for multiple"`

	CommonOpts
}

// Execute is the entry point for "experiment" command, called by flag parser
func (ec *ExperimentCommand) Execute(_ []string) error {
	exp := history.NewExperiment(ec.Name, ec.User, ec.Command, ec.Args)
	if err := ec.Store.Collection(storage.Experiments).Insert(ec.Ctx, exp.Record()); err != nil {
		return fmt.Errorf("can't create experiment %s: %w", ec.Name, err)
	}
	log.Printf("[INFO] experiment %s created, id %s", ec.Name, exp.ID)
	fmt.Fprintln(ec.Out, exp.ID)
	return nil
}
