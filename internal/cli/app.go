package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/receiptkeeper/internal/archive"
	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/ingest"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote"
	"github.com/dmitrijs2005/receiptkeeper/internal/services"
	"github.com/dmitrijs2005/receiptkeeper/internal/store"
	"github.com/dmitrijs2005/receiptkeeper/internal/syncer"
)

// receiptService is the part of services.ReceiptService the commands use.
type receiptService interface {
	Load(ctx context.Context) error
	Scan(ctx context.Context, image []byte, filename string) (services.ScanResult, error)
	Sync(ctx context.Context) (services.Summary, error)
	Records() []models.Record
	Get(id string) (models.Record, error)
	Status() services.Status
	Export(w io.Writer) error
	ExportFile(dir string) (string, error)
}

type App struct {
	config  *config.Config
	service receiptService
	log     logging.Logger
	out     io.Writer

	closers []io.Closer
}

// NewApp builds every component from c. Nothing talks to the network until a
// command runs.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger, logCloser, err := logging.New(logging.Options{Format: c.LogFormat, Level: c.LogLevel, File: c.LogFile})
	if err != nil {
		return nil, err
	}
	app := &App{config: c, log: logger, out: out, closers: []io.Closer{logCloser}}

	st, err := store.Open(ctx, c.LocalStore, c.LocalPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}
	app.closers = append(app.closers, st)

	tier, err := openTier(ctx, c, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.closers = append(app.closers, tier)

	structurer, err := newStructurer(ctx, c)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	pipeline := ingest.NewPipeline(ingest.NewHTTPOCRClient(c.OCREndpoint, c.OCRTimeout), structurer, logger)

	var arch archive.Archiver = archive.NopArchiver{}
	if c.ArchiveConfigured() {
		s3a, err := archive.NewS3Archiver(ctx, archive.S3Options{
			Bucket:    c.ArchiveBucket,
			Region:    c.ArchiveRegion,
			Endpoint:  c.ArchiveEndpoint,
			AccessKey: c.ArchiveAccessKey,
			SecretKey: c.ArchiveSecretKey,
		})
		if err != nil {
			logger.Warn(ctx, "image archive disabled", "error", err)
		} else {
			arch = s3a
		}
	}

	coord := syncer.New(tier, syncer.WithLogger(logger.With("component", "sync")))
	app.service = services.NewReceiptService(st, tier, coord, pipeline,
		services.WithAutoSync(c.AutoSync),
		services.WithArchiver(arch),
		services.WithLogger(logger),
	)
	return app, nil
}

func openTier(ctx context.Context, c *config.Config, log logging.Logger) (remote.Tier, error) {
	if !c.RemoteConfigured() {
		return remote.Unconfigured(), nil
	}

	pg, err := remote.OpenPostgres(c.RemoteDSN, c.RemoteTimeout)
	if err != nil {
		return remote.Tier{}, fmt.Errorf("open remote store: %w", err)
	}
	if c.RemoteMigrate {
		if err := pg.RunMigrations(ctx); err != nil {
			// The schema is applied again on the next start; an offline remote
			// must not block local work.
			log.Warn(ctx, "remote migrations not applied", "error", err)
		}
	}
	return remote.Configured(pg), nil
}

// unavailableStructurer fails every call; it stands in when the configured
// backend has no credentials, so local commands keep working.
type unavailableStructurer struct{ reason string }

func (u unavailableStructurer) Structure(context.Context, string) (models.Record, error) {
	return models.Record{}, fmt.Errorf("%w: %s", common.ErrParse, u.reason)
}

func newStructurer(ctx context.Context, c *config.Config) (ingest.Structurer, error) {
	switch c.Structurer {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return unavailableStructurer{reason: "anthropic_api_key is not set"}, nil
		}
		return ingest.NewAnthropicStructurer(c.AnthropicAPIKey, c.StructurerModel), nil
	case "gemini":
		if c.GeminiAPIKey == "" {
			return unavailableStructurer{reason: "gemini_api_key is not set"}, nil
		}
		return ingest.NewGeminiStructurer(ctx, c.GeminiAPIKey, c.StructurerModel)
	default:
		return nil, fmt.Errorf("unknown structurer %q", c.Structurer)
	}
}

// Close releases the store, the remote pool and the log file, in reverse
// order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
