// Command surreal is a minimal shell around the client library: it runs a
// query batch against any endpoint, or tails a live query.
//
//	surreal --endpoint mem:// --ns app --db main "CREATE person; SELECT * FROM person"
//	surreal --endpoint ws://localhost:8000 --ns app --db main --live person
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	surreal "github.com/forgo/surreal"
	"github.com/forgo/surreal/pkg/values"
)

// fileConfig is the optional YAML config file; flags override it.
type fileConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
}

func main() {
	var (
		endpoint   = pflag.String("endpoint", "", "database endpoint (mem://, surrealkv://<path>, ws://host:port)")
		namespace  = pflag.String("ns", "", "namespace to use")
		database   = pflag.String("db", "", "database to use")
		configPath = pflag.String("config", "", "path to YAML config file")
		live       = pflag.String("live", "", "tail live notifications for a table instead of running a query")
	)
	pflag.Parse()

	if err := run(*endpoint, *namespace, *database, *configPath, *live, pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "surreal:", err)
		os.Exit(1)
	}
}

func run(endpoint, namespace, database, configPath, live string, args []string) error {
	if configPath != "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if endpoint == "" {
			endpoint = cfg.Endpoint
		}
		if namespace == "" {
			namespace = cfg.Namespace
		}
		if database == "" {
			database = cfg.Database
		}
	}
	if endpoint == "" {
		return fmt.Errorf("no endpoint given (use --endpoint or --config)")
	}
	if live == "" && len(args) == 0 {
		return fmt.Errorf("nothing to do: pass a query or --live <table>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	db, err := surreal.Connect(ctx, endpoint, surreal.WithLogger(log))
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	if namespace != "" {
		if err := db.UseNS(ctx, namespace); err != nil {
			return err
		}
	}
	if database != "" {
		if err := db.UseDB(ctx, database); err != nil {
			return err
		}
	}

	if live != "" {
		return tail(ctx, db, live)
	}
	return query(ctx, db, strings.Join(args, " "))
}

func query(ctx context.Context, db *surreal.DB, sql string) error {
	results, err := db.Query(ctx, sql, nil)
	if err != nil {
		return err
	}
	for i, res := range results {
		if res.Err != nil {
			fmt.Printf("-- statement %d: ERR %s\n", i+1, res.Err.Message)
			continue
		}
		fmt.Printf("-- statement %d: OK\n%s\n", i+1, render(res.Result))
	}
	return nil
}

func tail(ctx context.Context, db *surreal.DB, table string) error {
	stream, err := db.Live(ctx, table)
	if err != nil {
		return err
	}
	defer stream.Kill(context.Background())

	fmt.Fprintf(os.Stderr, "tailing %s (query id %s), interrupt to stop\n", table, stream.ID())
	for {
		n, ok := stream.Next(ctx)
		if !ok {
			return nil
		}
		fmt.Printf("%s %s\n", n.Action, n.Data)
	}
}

func render(v values.Value) string {
	if arr, ok := v.Array(); ok {
		lines := make([]string, len(arr))
		for i, e := range arr {
			lines[i] = e.String()
		}
		return strings.Join(lines, "\n")
	}
	return v.String()
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
