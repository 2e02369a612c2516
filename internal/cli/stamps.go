package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/session"
)

// NewPointsCommand creates the points command.
func NewPointsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "List stamp points and which ones you have",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.authed()
			if err != nil {
				return err
			}
			points, err := api.Points(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), points)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tCATEGORY\tCOLLECTED")
			for _, p := range points {
				mark, when := "[ ]", "-"
				if p.IsCompleted {
					mark = "[x]"
					if p.CompletedAt != nil {
						when = humanize.Time(*p.CompletedAt)
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, p.ID, p.Name, p.Category, when)
			}
			return tw.Flush()
		},
	}
}

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Latitude  float64
	Longitude float64
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <code>",
		Short: "Submit a scanned QR code",
		Long: `Submit a scanned QR code.

Pass your position with --lat and --lon; the server rejects scans made
too far from the stamp point.

Example:
  stamprally scan STAMP_AKARENGA_2024 --lat 35.4532 --lon 139.6417`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos *models.Location
			latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
			if latSet != lonSet {
				return errors.New("--lat and --lon must be given together")
			}
			if latSet {
				pos = &models.Location{Latitude: opts.Latitude, Longitude: opts.Longitude}
			}
			return runScan(cmd, opts.RootOptions, args[0], pos)
		},
	}
	cmd.Flags().Float64Var(&opts.Latitude, "lat", 0, "current latitude")
	cmd.Flags().Float64Var(&opts.Longitude, "lon", 0, "current longitude")
	return cmd
}

func runScan(cmd *cobra.Command, opts *RootOptions, code string, pos *models.Location) error {
	api, err := opts.authed()
	if err != nil {
		return err
	}
	res, err := api.Scan(cmd.Context(), code, pos)
	if err != nil {
		return explain(err)
	}
	if !res.Accepted() {
		if opts.Format == "json" {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		}
		return fmt.Errorf("%s: %s", res.Outcome, res.Message())
	}

	if err := opts.state.AddStamp(cmd.Context(), *res.Stamp); err != nil {
		if !errors.Is(err, session.ErrAlreadyCollected) {
			return fmt.Errorf("stamp collected but not cached: %w", err)
		}
		log.Warn().Str("stamp_point_id", res.Stamp.StampPointID).Msg("Cached session already had this stamp")
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), res)
	}
	name := res.Stamp.StampPointID
	if res.Point != nil {
		name = res.Point.Name
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Collected %s! (%d stamps so far)\n", name, len(opts.state.Collected()))
	return nil
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show overall and per-category progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.authed()
			if err != nil {
				return err
			}
			progress, err := api.Progress(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), progress)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Collected %d of %d stamps (%d%%)\n", progress.Collected, progress.Total, progress.Percent)
			for _, c := range progress.Categories {
				fmt.Fprintf(out, "  %s: %d/%d\n", c.Category, c.Completed, c.Total)
			}
			return nil
		},
	}
}
