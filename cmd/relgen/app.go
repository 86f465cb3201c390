package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/koustreak/relgen/internal/config"
	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/filestore/minio"
	"github.com/koustreak/relgen/internal/logger"
	"github.com/koustreak/relgen/internal/relation"
	"github.com/koustreak/relgen/internal/report"
	"github.com/koustreak/relgen/internal/schema"
	"github.com/koustreak/relgen/internal/server"
	"github.com/urfave/cli/v2"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type runtime struct {
	out    io.Writer
	errOut io.Writer
	cfg    *config.Config
	log    *logger.Logger
}

func newApp(out, errOut io.Writer) *cli.App {
	rt := &runtime{out: out, errOut: errOut}

	formatFlag := func(value string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   value,
			Usage:   "output `FORMAT`: text, json, yaml or mermaid",
		}
	}

	return &cli.App{
		Name:      "relgen",
		Usage:     "Infer model relationships from a live database schema",
		UsageText: "relgen [global options] command [command options] [arguments...]",
		Version:   Version,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{Name: "driver", Usage: "database driver: postgres, mysql or sqlite"},
			&cli.StringFlag{Name: "dsn", Usage: "database connection string"},
			&cli.StringFlag{Name: "schema", Usage: "schema (postgres) or database (mysql) to read"},
			&cli.StringSliceFlag{Name: "ignore", Usage: "tables to leave out of the snapshot"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or console"},
		},
		Before: rt.setup,
		Commands: []*cli.Command{
			{
				Name:   "tables",
				Usage:  "List the tables of the schema snapshot",
				Action: rt.tables,
			},
			{
				Name:      "infer",
				Usage:     "Print the relationships of one table",
				ArgsUsage: "TABLE",
				Flags:     []cli.Flag{formatFlag("text")},
				Action:    rt.infer,
			},
			{
				Name:  "report",
				Usage: "Infer every table and write a report",
				Flags: []cli.Flag{
					formatFlag(""),
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
					&cli.IntFlag{Name: "workers", Usage: "concurrent inference workers, 0 for one per CPU"},
				},
				Action: rt.report,
			},
			{
				Name:  "publish",
				Usage: "Upload a report to object storage and print its download URL",
				Flags: []cli.Flag{
					formatFlag(""),
					&cli.StringFlag{Name: "bucket", Usage: "target bucket, defaults to store.bucket"},
					&cli.StringFlag{Name: "key", Usage: "object key, derived from the schema and time when empty"},
					&cli.DurationFlag{Name: "ttl", Usage: "download URL lifetime, defaults to store.url_ttl"},
				},
				Action: rt.publish,
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen `ADDRESS`, defaults to server.addr"},
				},
				Action: rt.serve,
			},
		},
	}
}

// setup resolves configuration: file, then environment, then flags.
// Validation waits for the commands that connect, so help works without a DSN.
func (rt *runtime) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	override := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	override("driver", &cfg.Database.Driver)
	override("dsn", &cfg.Database.DSN)
	override("schema", &cfg.Database.Schema)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)
	if c.IsSet("ignore") {
		cfg.Generate.IgnoreTables = c.StringSlice("ignore")
	}

	rt.cfg = cfg
	rt.log = logger.New(cfg.Logger(rt.errOut))
	logger.SetGlobal(rt.log)
	return nil
}

// open connects and returns the database with a snapshot cache over it.
func (rt *runtime) open(ctx context.Context) (database.DB, *schema.Cache, error) {
	if err := rt.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	db, loader, err := schema.Open(ctx, rt.cfg.DB(), schema.Options{
		Schema:       rt.cfg.Database.Schema,
		IgnoreTables: rt.cfg.Generate.IgnoreTables,
		Logger:       rt.log,
	})
	if err != nil {
		return nil, nil, err
	}
	return db, schema.NewCache(loader), nil
}

func (rt *runtime) snapshot(ctx context.Context) (*relation.SchemaMap, error) {
	db, cache, err := rt.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return cache.Get(ctx)
}

func (rt *runtime) meta() report.Meta {
	return report.Meta{
		Driver:      string(rt.cfg.DB().Driver),
		Schema:      rt.cfg.Database.Schema,
		GeneratedAt: time.Now(),
	}
}

func (rt *runtime) format(c *cli.Context) (report.Format, error) {
	if c.IsSet("format") || c.String("format") != "" {
		return report.ParseFormat(c.String("format"))
	}
	return report.ParseFormat(rt.cfg.Generate.Format)
}

func (rt *runtime) tables(c *cli.Context) error {
	snap, err := rt.snapshot(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tMODEL\tPRIMARY KEY\tFOREIGN KEYS")
	for name, t := range snap.All() {
		pk, ok := t.PrimaryKey.Get()
		if !ok {
			pk = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", name, relation.ModelName(name), pk, len(t.ForeignKeys))
	}
	return tw.Flush()
}

func (rt *runtime) infer(c *cli.Context) error {
	if c.NArg() != 1 {
		return errs.New(errs.ErrKindInvalidArgument, "infer takes exactly one TABLE argument")
	}
	name := c.Args().First()

	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	snap, err := rt.snapshot(c.Context)
	if err != nil {
		return err
	}
	t, ok := snap.Get(name)
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "table %q is not in the schema snapshot", name)
	}

	decls, err := relation.Infer(name, snap)
	if err != nil {
		return err
	}
	return report.EncodeTable(rt.out, format, report.NewTable(name, t, decls))
}

func (rt *runtime) report(c *cli.Context) error {
	format, err := rt.format(c)
	if err != nil {
		return err
	}

	snap, err := rt.snapshot(c.Context)
	if err != nil {
		return err
	}

	workers := rt.cfg.Generate.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	rep, err := report.Generate(c.Context, snap, workers, rt.meta())
	if err != nil {
		return err
	}

	out := rt.cfg.Generate.Output
	if c.IsSet("out") {
		out = c.String("out")
	}
	if out == "" || out == "-" {
		return report.Encode(rt.out, format, rep)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errs.Wrap(errs.ErrKindPermissionDenied, "cannot create output directory", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return errs.Wrap(errs.ErrKindPermissionDenied, "cannot create "+out, err)
	}
	if err := report.Encode(f, format, rep); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "cannot write "+out, err)
	}

	rt.log.Info().Str("path", out).Int("tables", len(rep.Tables)).Msg("report written")
	return nil
}

func (rt *runtime) publish(c *cli.Context) error {
	format, err := rt.format(c)
	if err != nil {
		return err
	}

	storeCfg := rt.cfg.Filestore()
	if c.IsSet("bucket") {
		storeCfg.Bucket = c.String("bucket")
	}
	ttl := rt.cfg.Store.URLTTL
	if c.IsSet("ttl") {
		ttl = c.Duration("ttl")
	}

	store, err := minio.New(c.Context, storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := rt.snapshot(c.Context)
	if err != nil {
		return err
	}
	rep, err := report.Generate(c.Context, snap, rt.cfg.Generate.Workers, rt.meta())
	if err != nil {
		return err
	}

	pub, err := report.Publish(c.Context, store, storeCfg.Bucket, c.String("key"), format, rep, ttl)
	if err != nil {
		return err
	}

	rt.log.Info().
		Str("bucket", pub.Object.Bucket).
		Str("key", pub.Object.Key).
		Int64("bytes", pub.Object.Size).
		Msg("report published")
	_, err = io.WriteString(rt.out, pub.URL+"\n")
	return err
}

func (rt *runtime) serve(c *cli.Context) error {
	db, cache, err := rt.open(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	// Fail fast on an unreadable schema instead of on the first request.
	if _, err := cache.Get(c.Context); err != nil {
		return err
	}

	addr := rt.cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	srv := server.New(cache, db, server.Options{
		Addr:            addr,
		ReadTimeout:     rt.cfg.Server.ReadTimeout,
		WriteTimeout:    rt.cfg.Server.WriteTimeout,
		ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
		Workers:         rt.cfg.Generate.Workers,
		Meta:            report.Meta{Driver: string(rt.cfg.DB().Driver), Schema: rt.cfg.Database.Schema},
		Logger:          rt.log,
	})
	return srv.ListenAndServe(c.Context)
}
