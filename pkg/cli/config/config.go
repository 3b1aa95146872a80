package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
	"github.com/secmon-lab/proteus/pkg/service/view"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Rotation holds the settings of avatar rotation and of the Home tab view
type Rotation struct {
	imageSource     string
	concurrency     int64
	storeTimeout    time.Duration
	legacyDownscale bool
	viewConfig      string
}

func (x *Rotation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "image-source",
			Usage:       "Where new avatars come from (https://... or gs://bucket/prefix)",
			Category:    "Rotation",
			Value:       avatar.DefaultSourceURL,
			Destination: &x.imageSource,
			Sources:     cli.EnvVars("PROTEUS_IMAGE_SOURCE"),
		},
		&cli.Int64Flag{
			Name:        "concurrency",
			Usage:       "Number of users processed in parallel in a tick",
			Category:    "Rotation",
			Value:       usecase.DefaultConcurrency,
			Destination: &x.concurrency,
			Sources:     cli.EnvVars("PROTEUS_CONCURRENCY"),
		},
		&cli.DurationFlag{
			Name:        "store-timeout",
			Usage:       "Timeout of a single user store call in a tick",
			Category:    "Rotation",
			Value:       usecase.DefaultStoreTimeout,
			Destination: &x.storeTimeout,
			Sources:     cli.EnvVars("PROTEUS_STORE_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:        "legacy-downscale",
			Usage:       "Down-scale only images larger than 1024x1024 in both directions",
			Category:    "Rotation",
			Destination: &x.legacyDownscale,
			Sources:     cli.EnvVars("PROTEUS_LEGACY_DOWNSCALE"),
		},
		&cli.StringFlag{
			Name:        "view-config",
			Usage:       "TOML file overriding the Home tab templates",
			Category:    "Rotation",
			Destination: &x.viewConfig,
			Sources:     cli.EnvVars("PROTEUS_VIEW_CONFIG"),
		},
	}
}

func (x Rotation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("image_source", x.imageSource),
		slog.Int64("concurrency", x.concurrency),
		slog.Duration("store_timeout", x.storeTimeout),
		slog.Bool("legacy_downscale", x.legacyDownscale),
		slog.String("view_config", x.viewConfig),
	)
}

// Configure builds the use case options for the rotation settings
func (x *Rotation) Configure(ctx context.Context) ([]usecase.Option, error) {
	src, err := avatar.NewSource(ctx, x.imageSource)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure image source")
	}

	opts := []usecase.Option{
		usecase.WithImageSource(src),
		usecase.WithConcurrency(int(x.concurrency)),
		usecase.WithStoreTimeout(x.storeTimeout),
	}

	if x.legacyDownscale {
		opts = append(opts, usecase.WithNormalizeOptions(avatar.WithLegacyDownscale()))
	}

	if x.viewConfig != "" {
		tmpl, err := view.LoadTemplates(x.viewConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, usecase.WithTemplates(tmpl))
	}

	return opts, nil
}
