package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/heatmap"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/spf13/cobra"
)

const (
	defaultRenderWidth  = 1280
	defaultRenderHeight = 800
)

type renderFlags struct {
	siteID          string
	urlPrefix       string
	interactionType string
	input           string
	output          string
	width           int
	height          int
	normalize       bool
}

func renderCommand() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a heatmap PNG",
		Long: `Render draws a density overlay (click or movement) or scroll reach
bands as a PNG. Points come from the collector's /heatmap/stats endpoint,
or from a saved stats response with --input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.FromContext(cmd.Context())

			if !domain.ValidInteractionType(f.interactionType) || f.interactionType == domain.InteractionAll {
				return fmt.Errorf("invalid --type %q: want click, movement or scroll", f.interactionType)
			}
			if f.width <= 0 || f.height <= 0 {
				return fmt.Errorf("invalid canvas %dx%d", f.width, f.height)
			}

			var (
				stats *domain.HeatmapStats
				err   error
			)
			if f.input != "" {
				stats, err = readStats(f.input)
			} else {
				if f.siteID == "" {
					return errMissingSiteFlag
				}
				stats, err = NewCollectorClient(endpoint).Stats(cmd.Context(), f.siteID, f.urlPrefix, f.interactionType)
			}
			if err != nil {
				return err
			}

			if err = writePNG(f.output, heatmap.Render(stats, f.interactionType, f.width, f.height, f.normalize)); err != nil {
				return err
			}

			log.Info("Heatmap rendered",
				logger.String("output", f.output),
				logger.String("type", f.interactionType),
				logger.Int("clicks", len(stats.Clicks)),
				logger.Int("scrolls", len(stats.Scrolls)),
				logger.Int("movements", len(stats.Movements)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.siteID, "site", "", "site id")
	cmd.Flags().StringVar(&f.urlPrefix, "url", "", "page URL prefix")
	cmd.Flags().StringVar(&f.interactionType, "type", domain.InteractionClick, "click, movement or scroll")
	cmd.Flags().StringVar(&f.input, "input", "", "read stats JSON from this file instead of the collector")
	cmd.Flags().StringVarP(&f.output, "output", "o", "heatmap.png", "PNG output path")
	cmd.Flags().IntVar(&f.width, "width", defaultRenderWidth, "canvas width in pixels")
	cmd.Flags().IntVar(&f.height, "height", defaultRenderHeight, "canvas height in pixels")
	cmd.Flags().BoolVar(&f.normalize, "normalize", false, "rescale points recorded at other viewport widths")

	return cmd
}

func readStats(path string) (*domain.HeatmapStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	stats := domain.NewHeatmapStats()
	if err = json.Unmarshal(data, stats); err != nil {
		return nil, fmt.Errorf("parse stats %s: %w", path, err)
	}
	return stats, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err = heatmap.EncodePNG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
