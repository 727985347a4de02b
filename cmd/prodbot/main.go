// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.astrophena.name/prodbot/internal/api/google/serviceaccount"
	"go.astrophena.name/prodbot/internal/api/google/sheets"
	"go.astrophena.name/prodbot/internal/catalog"
	"go.astrophena.name/prodbot/internal/cli"
	"go.astrophena.name/prodbot/internal/logger"
	"go.astrophena.name/prodbot/internal/syncx"
	"go.astrophena.name/prodbot/internal/systemd"
	"go.astrophena.name/prodbot/internal/telegram"
)

func main() { cli.Main(new(bot)) }

const (
	defaultAddr            = "localhost:3000"
	defaultCredentials     = "credentials.json"
	defaultSpreadsheetName = "product_list"
	defaultPollTimeout     = 25 * time.Second
	defaultWorkers         = 8
	logLineLimit           = 300
)

func (b *bot) Flags(fs *flag.FlagSet) {
	fs.StringVar(&b.addr, "addr", "", "Listen on `host:port`. Defaults to ADDR environment variable or "+defaultAddr+".")
	fs.StringVar(&b.configFile, "config", "", "Read configuration from `path` to config.star.")
	fs.StringVar(&b.credentials, "credentials", defaultCredentials, "Read service account key from `path`, unless SERVICE_ACCOUNT_KEY is set.")
	fs.BoolVar(&b.debug, "debug", false, "Log debug messages.")
	fs.DurationVar(&b.fetchTimeout, "fetch-timeout", 0, "Wait for the worksheet at most `duration`. Defaults to FETCH_TIMEOUT environment variable or 10s.")
	fs.StringVar(&b.sheet, "sheet", "", "Worksheet `title`. Defaults to the first worksheet.")
	fs.StringVar(&b.spreadsheetID, "spreadsheet-id", "", "Spreadsheet `ID`.")
	fs.StringVar(&b.spreadsheetName, "spreadsheet-name", "", "Spreadsheet `name`, used when the ID is not set. Defaults to "+defaultSpreadsheetName+".")
}

type bot struct {
	// configuration, read-only after initialization
	addr            string
	configFile      string
	credentials     string
	debug           bool
	fetchTimeout    time.Duration
	host            string
	serviceKey      string
	sheet           string
	spreadsheetID   string
	spreadsheetName string
	tgSecret        string
	tgToken         string

	// initialized by init
	cfg       *config
	logf      logger.Logf
	logStream logger.Streamer
	notifier  *systemd.Notifier
	scrubber  *strings.Replacer
	slog      *slog.Logger
	svc       *catalog.Service
	tg        *telegram.Client

	catalogStatus  *syncx.Protected[status]
	telegramStatus *syncx.Protected[status]

	// for tests
	httpc       *http.Client
	tgAPI       string
	pollTimeout time.Duration
	workers     int
	ready       func(addr string)
}

// status is the outcome of the last call to an upstream API.
type status struct {
	err error
	at  time.Time
}

func (s status) health() (string, bool) {
	switch {
	case s.at.IsZero():
		return "no requests yet", true
	case s.err != nil:
		return fmt.Sprintf("failed at %s: %v", s.at.Format(time.RFC3339), s.err), false
	default:
		return "ok at " + s.at.Format(time.RFC3339), true
	}
}

var errUnknownCommand = errors.New("unknown command")

func (b *bot) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	// Load configuration from environment variables.
	b.addr = cmp.Or(b.addr, env.Getenv("ADDR"), defaultAddr)
	b.configFile = cmp.Or(b.configFile, env.Getenv("CONFIG"))
	b.host = cmp.Or(b.host, env.Getenv("HOST"))
	b.serviceKey = cmp.Or(b.serviceKey, env.Getenv("SERVICE_ACCOUNT_KEY"))
	b.sheet = cmp.Or(b.sheet, env.Getenv("SHEET"))
	b.spreadsheetID = cmp.Or(b.spreadsheetID, env.Getenv("SPREADSHEET_ID"))
	b.spreadsheetName = cmp.Or(b.spreadsheetName, env.Getenv("SPREADSHEET_NAME"), defaultSpreadsheetName)
	b.tgSecret = cmp.Or(b.tgSecret, env.Getenv("TG_SECRET"))
	b.tgToken = cmp.Or(b.tgToken, env.Getenv("TG_TOKEN"), env.Getenv("BOT_TOKEN"))
	if b.fetchTimeout == 0 {
		if s := env.Getenv("FETCH_TIMEOUT"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("%w: parsing FETCH_TIMEOUT: %v", cli.ErrInvalidArgs, err)
			}
			b.fetchTimeout = d
		}
	}

	cmd := "run"
	if len(env.Args) > 0 {
		cmd = env.Args[0]
	}
	switch cmd {
	case "run":
		if len(env.Args) > 1 {
			return fmt.Errorf("%w: run takes no arguments", cli.ErrInvalidArgs)
		}
		if err := b.init(ctx, env, true); err != nil {
			return err
		}
		return b.serve(ctx)
	case "lookup":
		if len(env.Args) != 2 {
			return fmt.Errorf("%w: usage: lookup <number>", cli.ErrInvalidArgs)
		}
		if err := b.init(ctx, env, false); err != nil {
			return err
		}
		return b.lookup(ctx, env.Stdout, env.Args[1])
	default:
		return fmt.Errorf("%w: %w %q", cli.ErrInvalidArgs, errUnknownCommand, cmd)
	}
}

var (
	errNoServiceKey = errors.New("no service account key; set SERVICE_ACCOUNT_KEY or pass -credentials")
	errNoSecret     = errors.New("TG_SECRET is required when HOST is set")
)

func (b *bot) init(ctx context.Context, env *cli.Env, withTelegram bool) error {
	if b.httpc == nil {
		b.httpc = &http.Client{
			// Must exceed the long polling timeout.
			Timeout: time.Minute,
		}
	}
	if b.pollTimeout == 0 {
		b.pollTimeout = defaultPollTimeout
	}
	if b.workers == 0 {
		b.workers = defaultWorkers
	}

	b.logStream = logger.NewStreamer(logLineLimit)
	w := io.MultiWriter(env.Stderr, b.logStream)
	b.logf = log.New(w, "", 0).Printf
	l := logger.New(w)
	if b.debug {
		l.Level.Set(slog.LevelDebug)
	}
	b.slog = l.Logger
	b.notifier = &systemd.Notifier{Getenv: env.Getenv, Logf: b.logf}

	key, err := b.loadKey()
	if err != nil {
		return err
	}

	var scrubPairs []string
	for _, val := range []string{
		b.tgToken,
		b.tgSecret,
		key.PrivateKeyID,
	} {
		if val != "" {
			scrubPairs = append(scrubPairs, val, "[EXPUNGED]")
		}
	}
	if len(scrubPairs) > 0 {
		b.scrubber = strings.NewReplacer(scrubPairs...)
	}

	b.cfg = defaultConfig()
	if b.configFile != "" {
		src, err := os.ReadFile(b.configFile)
		if err != nil {
			return err
		}
		if b.cfg, err = parseConfig(b.configFile, src, b.logf); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	b.catalogStatus = syncx.Protect(status{})
	b.telegramStatus = syncx.Protect(status{})

	client := &sheets.Client{
		Tokens: &serviceaccount.TokenSource{
			Key:        key,
			Scopes:     sheets.Scopes,
			HTTPClient: b.httpc,
			Scrubber:   b.scrubber,
		},
		HTTPClient: b.httpc,
		Scrubber:   b.scrubber,
	}
	table := &sheets.Table{
		Client:          client,
		SpreadsheetID:   b.spreadsheetID,
		SpreadsheetName: b.spreadsheetName,
		Sheet:           b.sheet,
	}
	b.svc = catalog.NewService(catalog.Opts{
		Source: catalog.SourceFunc(func(ctx context.Context) (catalog.Catalog, error) {
			c, err := table.FetchAll(ctx)
			record(b.catalogStatus, err)
			return c, err
		}),
		Aliases: b.cfg.aliases,
		Timeout: b.fetchTimeout,
		Logger:  b.slog,
	})

	if !withTelegram {
		return nil
	}
	if b.host != "" && b.tgSecret == "" {
		return errNoSecret
	}
	b.tg, err = telegram.New(telegram.Config{
		Token:      b.tgToken,
		API:        b.tgAPI,
		HTTPClient: b.httpc,
		Scrubber:   b.scrubber,
		Logger:     b.slog,
	})
	return err
}

func (b *bot) loadKey() (*serviceaccount.Key, error) {
	data := []byte(b.serviceKey)
	if len(data) == 0 {
		if b.credentials == "" {
			return nil, errNoServiceKey
		}
		var err error
		data, err = os.ReadFile(b.credentials)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", errNoServiceKey, err)
		}
		if err != nil {
			return nil, err
		}
	}
	return serviceaccount.LoadKey(data)
}

func record(s *syncx.Protected[status], err error) {
	s.WriteAccess(func(st *status) {
		*st = status{err: err, at: time.Now()}
	})
}

// lookup prints the reply for a single product number.
func (b *bot) lookup(ctx context.Context, w io.Writer, query string) error {
	query = strings.TrimSpace(query)
	res := b.svc.Lookup(ctx, query)
	reply, err := b.cfg.replies.reply(query, res)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, reply.Text)
	if res.Kind == catalog.SourceUnavailable {
		return b.catalogStatus.Load().err
	}
	return nil
}
