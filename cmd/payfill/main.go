// Command payfill fills payment checkout forms with test data.
//
// Usage:
//
//	payfill -config payfill.yaml                   # live runner from YAML config
//	payfill -url https://checkout.stripe.com/...   # live runner with defaults
//	payfill -classify page.html -out filled.html   # offline scan of an HTML file
//	payfill -gen-card 424242                       # print a Luhn-valid card number
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/payfill/cardgen"
	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/control"
	"github.com/hazyhaar/payfill/dom/htmldoc"
	"github.com/hazyhaar/payfill/fill"
	"github.com/hazyhaar/payfill/journal"
	"github.com/hazyhaar/payfill/livefill"
	"github.com/hazyhaar/payfill/settings"
)

var version = "dev"

type options struct {
	configPath string
	targetURL  string
	classify   string
	pageURL    string
	out        string
	rules      string
	force      bool
	genCard    string
	length     int
	dbPath     string
	addr       string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to payfill.yaml config file")
	flag.StringVar(&o.targetURL, "url", "", "attach to a single checkout URL")
	flag.StringVar(&o.classify, "classify", "", "scan an HTML file offline and print the report")
	flag.StringVar(&o.pageURL, "page-url", "https://checkout.stripe.com/", "page URL assumed for -classify")
	flag.StringVar(&o.out, "out", "", "write the filled HTML of -classify here")
	flag.StringVar(&o.rules, "rules", "", "YAML rules file replacing the built-in table")
	flag.BoolVar(&o.force, "force", false, "overwrite non-empty fields in -classify")
	flag.StringVar(&o.genCard, "gen-card", "", "generate a card number from this BIN prefix")
	flag.IntVar(&o.length, "length", cardgen.DefaultLength, "length of the generated card number")
	flag.StringVar(&o.dbPath, "db", "", "settings database (default payfill.db)")
	flag.StringVar(&o.addr, "addr", "", "control HTTP listen address (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("payfill: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	switch {
	case o.genCard != "":
		return runGenCard(o)
	case o.classify != "":
		return runClassify(ctx, logger, o)
	case o.configPath != "" || o.targetURL != "":
		return runLive(ctx, logger, o)
	}
	fmt.Fprintln(os.Stderr, "usage: payfill -config <file> | -url <url> | -classify <file.html> | -gen-card <bin>")
	os.Exit(2)
	return nil
}

func runGenCard(o options) error {
	number, err := cardgen.Generate(o.genCard, o.length)
	if err != nil {
		return err
	}
	fmt.Println(cardgen.Format(number))
	return nil
}

func openStore(ctx context.Context, path string) (*settings.Store, *journal.Journal, func(), error) {
	db, err := settings.Open(path, settings.WithMkdirAll())
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := settings.NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	if err := journal.Init(db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return store, journal.New(db, nil), func() { db.Close() }, nil
}

func runClassify(ctx context.Context, logger *slog.Logger, o options) error {
	f, err := os.Open(o.classify)
	if err != nil {
		return err
	}
	doc, err := htmldoc.Parse(f, o.pageURL)
	f.Close()
	if err != nil {
		return err
	}

	path := o.dbPath
	if path == "" {
		path = "payfill.db"
	}
	store, _, closeDB, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer closeDB()
	cur, rev, err := store.Load(ctx)
	if err != nil {
		return err
	}

	opts := []fill.Option{fill.WithLogger(logger)}
	if o.rules != "" {
		rules, err := classify.LoadRulesFile(o.rules)
		if err != nil {
			return err
		}
		opts = append(opts, fill.WithClassifier(classify.New(rules)))
	}
	snap := settings.Snapshot{Version: uint64(rev), Settings: cur}
	rep := fill.NewEngine(opts...).Scan(ctx, doc, snap, o.force)
	rep.PageURL = o.pageURL

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}

	if o.out != "" {
		out, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := doc.Render(out); err != nil {
			return err
		}
	}
	return nil
}

func runLive(ctx context.Context, logger *slog.Logger, o options) error {
	cfg := livefill.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = livefill.LoadConfigFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.targetURL != "" {
		cfg.Target.URL = o.targetURL
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.addr != "" {
		cfg.Control.Addr = o.addr
	}
	if o.rules != "" {
		cfg.Fill.RulesFile = o.rules
	}

	store, jrnl, closeDB, err := openStore(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer closeDB()
	if cfg.Store.JournalRetention > 0 {
		if n, err := jrnl.Cleanup(ctx, cfg.Store.JournalRetention); err != nil {
			logger.Warn("payfill: journal cleanup", "error", err)
		} else if n > 0 {
			logger.Info("payfill: journal cleanup", "deleted", n)
		}
	}

	runner, err := livefill.New(ctx, cfg, store, livefill.WithLogger(logger), livefill.WithJournal(jrnl))
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer runner.Stop()

	svc := control.New(store,
		control.WithFiller(runner),
		control.WithJournal(jrnl),
		control.WithLogger(logger))

	var srv *http.Server
	if cfg.Control.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Control.Addr,
			Handler:           svc.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			logger.Info("payfill: control listening", "addr", cfg.Control.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("payfill: control server", "error", err)
			}
		}()
	}

	if cfg.Control.MCPStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "payfill", Version: version}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("payfill: mcp stdio", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("payfill: shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("payfill: shutdown", "error", err)
		}
	}
	return nil
}
