package cmd

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrail/app/history"
	"github.com/umputun/jobtrail/app/history/enums"
	"github.com/umputun/jobtrail/app/storage"
)

// RunCommand set of flags and command for recording job runs
type RunCommand struct {
	Job      string            `long:"job" required:"true" description:"job id"`
	Platform string            `long:"platform" default:"local" description:"compute platform (local, caip, gke, test)"`
	Status   string            `long:"status" default:"submitted" description:"run status (submitted, running, succeeded, failed, stopped, unknown)"`
	Details  map[string]string `long:"detail" description:"run detail as key:value, repeat for multiple"`

	CommonOpts
}

// Execute is the entry point for "run" command, called by flag parser.
// Platform and status names are case insensitive.
func (rc *RunCommand) Execute(_ []string) error {
	platform, err := enums.ParsePlatform(strings.ToLower(rc.Platform))
	if err != nil {
		return err
	}
	status, err := enums.ParseJobStatus(strings.ToLower(rc.Status))
	if err != nil {
		return err
	}

	if _, err := rc.Store.Collection(storage.Jobs).Get(rc.Ctx, rc.Job); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("can't check job %s: %w", rc.Job, err)
		}
		log.Printf("[WARN] job %s not found, run will reference missing job", rc.Job)
	}

	details := make(map[string]any, len(rc.Details))
	for k, v := range rc.Details {
		details[k] = v
	}
	run := history.NewRun(rc.Job, rc.User, platform, status, details)
	if err := rc.Store.Collection(storage.Runs).Insert(rc.Ctx, run.Record()); err != nil {
		return fmt.Errorf("can't record run of %s: %w", rc.Job, err)
	}
	log.Printf("[INFO] run %s of job %s recorded, %s on %s", run.ID, rc.Job, status, platform)
	fmt.Fprintln(rc.Out, run.ID)
	return nil
}
