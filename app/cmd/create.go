package cmd

import (
	"errors"
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrail/app/history"
	"github.com/umputun/jobtrail/app/storage"
)

// CreateCommand set of flags and command for job batch creation
type CreateCommand struct {
	Name       string   `long:"name" required:"true" description:"base name of jobs"`
	Experiment string   `long:"experiment" required:"true" description:"id of the owning experiment"`
	Config     string   `long:"config" description:"yaml or json file with the list of per-job keyword args"`
	Args       []string `long:"arg" description:"positional argument shared by all jobs, repeat for multiple"`

	CommonOpts
}

// Execute is the entry point for "create" command, called by flag parser.
// Jobs are inserted as they are generated and printed one per line.
func (cc *CreateCommand) Execute(_ []string) error {
	var configs []map[string]any
	if cc.Config != "" {
		var err error
		if configs, err = history.LoadConfigs(cc.Config); err != nil {
			return err
		}
	}

	// reference is not enforced, only reported
	if _, err := cc.Store.Collection(storage.Experiments).Get(cc.Ctx, cc.Experiment); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("can't check experiment %s: %w", cc.Experiment, err)
		}
		log.Printf("[WARN] experiment %s not found, jobs will reference missing experiment", cc.Experiment)
	}

	seq, err := history.CreateRecords(cc.Name, cc.User, cc.Experiment, configs, cc.Args)
	if err != nil {
		return err
	}

	ids, err := history.InsertAll(cc.Ctx, cc.Store.Collection(storage.Jobs), seq)
	for _, id := range ids {
		fmt.Fprintln(cc.Out, id)
	}
	if err != nil {
		return fmt.Errorf("created %d jobs, failed on the next one: %w", len(ids), err)
	}
	log.Printf("[INFO] %d jobs %s-* created for experiment %s", len(ids), cc.Name, cc.Experiment)
	return nil
}
