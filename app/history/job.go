package history

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/umputun/jobtrail/app/storage"
)

// Job is one unit of work derived from one configuration. Relations to experiment and runs
// are kept as foreign ids and resolved on demand.
type Job interface {
	ID() string
	Name() string
	User() string
	Timestamp() time.Time
	Args() []string
	Kwargs() map[string]any
	ExperimentID() string
	Record() storage.Record
	Experiment(ctx context.Context) (Experiment, error)
	Runs(ctx context.Context) iter.Seq2[Run, error]
}

// BareJob is a job living in memory only, e.g. freshly generated and not persisted yet.
// It can't resolve relations.
type BareJob struct {
	rec JobRecord
}

// NewBareJob makes job from record
func NewBareJob(rec storage.Record) (*BareJob, error) {
	jr, err := JobFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &BareJob{rec: jr}, nil
}

// ID returns job id
func (j *BareJob) ID() string { return j.rec.ID }

// Name returns job name
func (j *BareJob) Name() string { return j.rec.Name }

// User returns user created the job
func (j *BareJob) User() string { return j.rec.User }

// Timestamp returns job creation time
func (j *BareJob) Timestamp() time.Time { return j.rec.Timestamp }

// Args returns a copy of positional command args
func (j *BareJob) Args() []string { return slices.Clone(j.rec.Args) }

// Kwargs returns a shallow copy of keyword command args
func (j *BareJob) Kwargs() map[string]any { return maps.Clone(j.rec.Kwargs) }

// ExperimentID returns foreign id of the owning experiment
func (j *BareJob) ExperimentID() string { return j.rec.Experiment }

// Record serializes job
func (j *BareJob) Record() storage.Record { return j.rec.Record() }

// Experiment always fails with ErrUnbound
func (j *BareJob) Experiment(context.Context) (Experiment, error) {
	return Experiment{}, ErrUnbound
}

// Runs yields ErrUnbound
func (j *BareJob) Runs(context.Context) iter.Seq2[Run, error] {
	return func(yield func(Run, error) bool) {
		yield(Run{}, ErrUnbound)
	}
}

// StorageJob resolves experiment and runs through storage on every call, nothing is cached
type StorageJob struct {
	BareJob
	storage storage.Storage
}

// NewStorageJob wraps stored job record and storage used to resolve relations
func NewStorageJob(st storage.Storage, rec storage.Record) (*StorageJob, error) {
	jr, err := JobFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &StorageJob{BareJob: BareJob{rec: jr}, storage: st}, nil
}

// LoadJob gets job by id from jobs collection
func LoadJob(ctx context.Context, st storage.Storage, id string) (*StorageJob, error) {
	rec, err := st.Collection(storage.Jobs).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	return NewStorageJob(st, rec)
}

// Experiment fetches the owning experiment, fails with storage.ErrNotFound if it doesn't exist
func (j *StorageJob) Experiment(ctx context.Context) (Experiment, error) {
	rec, err := j.storage.Collection(storage.Experiments).Get(ctx, j.rec.Experiment)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment of job %s: %w", j.rec.ID, err)
	}
	return ExperimentFromRecord(rec)
}

// Runs fetches runs of the job, empty if job has no runs yet
func (j *StorageJob) Runs(ctx context.Context) iter.Seq2[Run, error] {
	return func(yield func(Run, error) bool) {
		for rec, err := range j.storage.Collection(storage.Runs).Where(ctx, "job", storage.EQ, j.rec.ID) {
			if err != nil {
				yield(Run{}, err)
				return
			}
			run, err := RunFromRecord(rec)
			if !yield(run, err) {
				return
			}
		}
	}
}

// ExperimentJobs fetches jobs of the experiment
func ExperimentJobs(ctx context.Context, st storage.Storage, experimentID string) iter.Seq2[*StorageJob, error] {
	return func(yield func(*StorageJob, error) bool) {
		for rec, err := range st.Collection(storage.Jobs).Where(ctx, "experiment", storage.EQ, experimentID) {
			if err != nil {
				yield(nil, err)
				return
			}
			job, err := NewStorageJob(st, rec)
			if !yield(job, err) {
				return
			}
		}
	}
}

// InsertAll persists records one by one as the sequence produces them and returns ids of
// inserted records. Stops on the first error, records inserted before it stay.
func InsertAll(ctx context.Context, coll storage.Collection, records iter.Seq[storage.Record]) ([]string, error) {
	ids := []string{}
	for rec := range records {
		if err := coll.Insert(ctx, rec); err != nil {
			return ids, err
		}
		ids = append(ids, rec.ID())
	}
	return ids, nil
}
