package cmd

import (
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobtrail/app/history"
	"github.com/umputun/jobtrail/app/history/enums"
)

// JobsCommand set of flags and command for listing jobs of an experiment
type JobsCommand struct {
	Experiment  string `long:"experiment" required:"true" description:"experiment id"`
	Concurrency int    `long:"concurrency" default:"4" description:"max parallel run lookups"`

	CommonOpts
}

type jobSummary struct {
	job      *history.StorageJob
	runs     int
	latest   enums.JobStatus
	latestAt time.Time
}

// Execute is the entry point for "jobs" command, called by flag parser.
// Runs of every job looked up in parallel, output keeps jobs order.
func (jc *JobsCommand) Execute(_ []string) error {
	summaries := []*jobSummary{}
	for job, err := range history.ExperimentJobs(jc.Ctx, jc.Store, jc.Experiment) {
		if err != nil {
			return fmt.Errorf("can't list jobs of %s: %w", jc.Experiment, err)
		}
		summaries = append(summaries, &jobSummary{job: job})
	}
	log.Printf("[DEBUG] %d jobs found for experiment %s", len(summaries), jc.Experiment)

	gr := syncs.NewErrSizedGroup(max(jc.Concurrency, 1), syncs.Context(jc.Ctx), syncs.Preemptive)
	for _, s := range summaries {
		gr.Go(func() error {
			for run, err := range s.job.Runs(jc.Ctx) {
				if err != nil {
					return fmt.Errorf("can't get runs of %s: %w", s.job.ID(), err)
				}
				if s.runs == 0 || !run.Timestamp.Before(s.latestAt) {
					s.latest, s.latestAt = run.Status, run.Timestamp
				}
				s.runs++
			}
			return nil
		})
	}
	if err := gr.Wait(); err != nil {
		return err
	}

	for _, s := range summaries {
		status := "-"
		if s.runs > 0 {
			status = s.latest.String()
		}
		fmt.Fprintf(jc.Out, "%s\t%s\truns=%d\tlast=%s\n", s.job.ID(), s.job.Name(), s.runs, status)
	}
	return nil
}
