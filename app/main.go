package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobtrail/app/cmd"
	"github.com/umputun/jobtrail/app/storage"
	"github.com/umputun/jobtrail/app/storage/redis"
	"github.com/umputun/jobtrail/app/storage/sqlite"
)

var opts struct {
	Store string `short:"s" long:"store" env:"JOBTRAIL_STORE" choice:"sqlite" choice:"redis" choice:"memory" default:"sqlite" description:"storage backend"`
	DB    string `long:"db" env:"JOBTRAIL_DB" default:"jobtrail.db" description:"sqlite database file"`
	User  string `short:"u" long:"user" env:"USER" default:"unknown" description:"user recorded as the owner"`
	Dbg   bool   `long:"dbg" env:"JOBTRAIL_DEBUG" description:"debug mode"`

	Repeater struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"5" description:"how many times to repeat busy writes and pings"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"10ms" description:"initial duration"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
		Jitter   bool          `long:"jitter" env:"JITTER" description:"jitter"`
	} `group:"repeater" namespace:"repeater" env-namespace:"JOBTRAIL_REPEATER"`

	Redis struct {
		Addr     string `long:"addr" env:"ADDR" default:"localhost:6379" description:"redis address"`
		Password string `long:"password" env:"PASSWORD" description:"redis password"`
		DB       int    `long:"db" env:"DB" default:"0" description:"redis database number"`
		Prefix   string `long:"prefix" env:"PREFIX" default:"jobtrail:" description:"key prefix of collections"`
	} `group:"redis" namespace:"redis" env-namespace:"JOBTRAIL_REDIS"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"jobtrail.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"30" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"JOBTRAIL_LOG"`

	ExperimentCmd cmd.ExperimentCommand `command:"experiment" description:"create experiment"`
	CreateCmd     cmd.CreateCommand     `command:"create" description:"create jobs of experiment from configs"`
	RunCmd        cmd.RunCommand        `command:"run" description:"record run of job"`
	ShowCmd       cmd.ShowCommand       `command:"show" description:"show job with its experiment and runs"`
	JobsCmd       cmd.JobsCommand       `command:"jobs" description:"list jobs of experiment"`
	SchemaCmd     cmd.SchemaCommand     `command:"schema" description:"print json schema of job record"`
}

var revision = "unknown"

var errUnknownStore = errors.New("unknown store")

func main() {
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		logOut := setupLogs()
		defer closeLogs(logOut)
		log.Printf("[DEBUG] jobtrail %s, store %s", revision, opts.Store)

		defer func() {
			if x := recover(); x != nil {
				log.Printf("[WARN] run time panic:\n%v", x)
				panic(x)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

		if err := execute(ctx, command, args, os.Stdout); err != nil {
			log.Printf("[ERROR] %v", err)
			return err
		}
		return nil
	}

	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// execute opens storage, passes common options to the command and runs it.
// Schema command doesn't touch storage and runs without it.
func execute(ctx context.Context, command flags.Commander, args []string, out io.Writer) error {
	c, ok := command.(cmd.CommonOptionsCommander)
	if !ok {
		return fmt.Errorf("unexpected command type %T", command)
	}

	var st storage.Storage
	if _, schema := command.(*cmd.SchemaCommand); !schema {
		var err error
		if st, err = makeStorage(ctx); err != nil {
			return err
		}
		defer closeStorage(st)
	}

	c.SetCommon(cmd.CommonOpts{Ctx: ctx, Store: st, User: opts.User, Out: out})
	return c.Execute(args)
}

func makeStorage(ctx context.Context) (storage.Storage, error) {
	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Repeater.Attempts, Duration: opts.Repeater.Duration,
		Factor: opts.Repeater.Factor, Jitter: opts.Repeater.Jitter})

	switch opts.Store {
	case "sqlite":
		st, err := sqlite.New(opts.DB, sqlite.WithRepeater(rptr))
		if err != nil {
			return nil, fmt.Errorf("can't open sqlite store %s: %w", opts.DB, err)
		}
		log.Printf("[DEBUG] sqlite store %s opened", opts.DB)
		return st, nil
	case "redis":
		st := redis.New(opts.Redis.Addr, opts.Redis.Password, opts.Redis.DB, redis.WithPrefix(opts.Redis.Prefix))
		if err := rptr.Do(ctx, func() error { return st.Ping(ctx) }); err != nil {
			if closeErr := st.Close(); closeErr != nil {
				log.Printf("[WARN] can't close redis client, %v", closeErr)
			}
			return nil, fmt.Errorf("can't connect to redis %s: %w", opts.Redis.Addr, err)
		}
		log.Printf("[DEBUG] redis store %s/%d opened", opts.Redis.Addr, opts.Redis.DB)
		return st, nil
	case "memory":
		log.Printf("[WARN] memory store used, nothing will be kept after exit")
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownStore, opts.Store)
}

func closeStorage(st storage.Storage) {
	c, ok := st.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Printf("[WARN] can't close %s store, %v", opts.Store, err)
	}
}

// setupLogs directs logs to rotated file if enabled, to stderr otherwise.
// Stdout is left for command output.
func setupLogs() io.Writer {
	var out io.Writer = os.Stderr
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	if opts.Dbg {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return out
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
	return out
}

// closeLogs flushes and closes rotated log file, stderr is left open
func closeLogs(out io.Writer) {
	if lj, ok := out.(*lumberjack.Logger); ok {
		if err := lj.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "can't close log file %s: %v\n", lj.Filename, err)
		}
	}
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Fprintln(os.Stderr, string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGINT and SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
