package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cubby/internal/config"
	"cubby/internal/export"
	"cubby/internal/language"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/textutil"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Register and inspect media assets",
	}
	assetCmd.AddCommand(newAssetRegisterCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetShowCommand(ctx))
	assetCmd.AddCommand(newAssetExportCommand(ctx))
	return assetCmd
}

type registerOptions struct {
	workspace string
	user      string
	upload    bool
	jobs      []string
	filename  string
	asJSON    bool
}

func newAssetRegisterCommand(ctx *commandContext) *cobra.Command {
	var opts registerOptions
	cmd := &cobra.Command{
		Use:   "register <locator|file>",
		Short: "Register an uploaded asset and enqueue its jobs",
		Long: "Registers an asset whose source already lives in the media store at <locator>.\n" +
			"With --upload, <file> is a local path that is copied into the media store first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *queue.Store) error {
				kinds, err := resolveKinds(opts.jobs, cfg.Scheduler.DefaultJobs)
				if err != nil {
					return err
				}
				in := queue.NewAsset{
					ID:          uuid.NewString(),
					WorkspaceID: strings.TrimSpace(opts.workspace),
					UserID:      strings.TrimSpace(opts.user),
					Filename:    strings.TrimSpace(opts.filename),
				}
				if opts.upload {
					media, err := ctx.mediaStore()
					if err != nil {
						return err
					}
					if err := uploadSource(cmd, media, args[0], &in); err != nil {
						return err
					}
				} else {
					locator, err := mediastore.CleanLocator(args[0])
					if err != nil {
						return err
					}
					in.StoragePath = locator
					if in.Filename == "" {
						in.Filename = path.Base(locator)
					}
				}

				asset, jobs, err := store.RegisterAsset(cmd.Context(), in, kinds...)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return writeJSON(cmd, struct {
						Asset *queue.Asset  `json:"asset"`
						Jobs  []*queue.Job `json:"jobs"`
					}{asset, jobs})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Registered asset %s (%s)\n", asset.ID, asset.StoragePath)
				for _, job := range jobs {
					fmt.Fprintf(out, "  queued %-22s %s\n", job.Kind, job.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace that owns the asset")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "Uploading user id")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "Copy a local file into the media store before registering")
	cmd.Flags().StringSliceVar(&opts.jobs, "jobs", nil, "Job kinds to enqueue (defaults to scheduler.default_jobs)")
	cmd.Flags().StringVar(&opts.filename, "filename", "", "Display filename (defaults to the locator base name)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the asset and jobs as JSON")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func uploadSource(cmd *cobra.Command, media mediastore.Store, localPath string, in *queue.NewAsset) error {
	source, err := config.ExpandPath(localPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", source, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", source)
	}
	base := filepath.Base(source)
	locator := path.Join("uploads", textutil.SanitizeToken(in.WorkspaceID), in.ID, textutil.SanitizeFileName(base))
	if err := media.Upload(cmd.Context(), source, locator, mediastore.ContentTypeFor(base)); err != nil {
		return fmt.Errorf("upload %s: %w", source, err)
	}
	in.StoragePath = locator
	in.FileSizeBytes = info.Size()
	if in.Filename == "" {
		in.Filename = base
	}
	return nil
}

func resolveKinds(flagKinds, defaults []string) ([]queue.JobKind, error) {
	source := flagKinds
	if len(source) == 0 {
		source = defaults
	}
	seen := make(map[queue.JobKind]bool, len(source))
	kinds := make([]queue.JobKind, 0, len(source))
	for _, raw := range source {
		kind, err := queue.ParseJobKind(raw)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]queue.AssetStatus, 0, len(statuses))
			for _, raw := range statuses {
				status, err := parseAssetStatus(raw)
				if err != nil {
					return err
				}
				filter = append(filter, status)
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				assets, err := store.ListAssets(cmd.Context(), limit, filter...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, assets)
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets")
					return nil
				}
				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{a.ID, a.WorkspaceID, a.Filename, string(a.Status), formatDuration(a.DurationSeconds), formatTime(a.UpdatedAt)})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Workspace", "Filename", "Status", "Duration", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (uploaded, processing, ready, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum assets to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newAssetShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an asset with its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				asset, err := store.GetAsset(cmd.Context(), args[0])
				if errors.Is(err, queue.ErrNotFound) {
					return fmt.Errorf("asset %s not found", args[0])
				}
				if err != nil {
					return err
				}
				jobs, err := store.ListJobsForAsset(cmd.Context(), asset.ID)
				if err != nil {
					return err
				}
				labels, err := store.ListLabels(cmd.Context(), asset.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Asset  *queue.Asset  `json:"asset"`
						Jobs   []*queue.Job `json:"jobs"`
						Labels int          `json:"labels"`
					}{asset, jobs, len(labels)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Asset:     %s\n", asset.ID)
				fmt.Fprintf(out, "Workspace: %s\n", asset.WorkspaceID)
				fmt.Fprintf(out, "Filename:  %s\n", asset.Filename)
				fmt.Fprintf(out, "Source:    %s\n", asset.StoragePath)
				fmt.Fprintf(out, "Status:    %s\n", asset.Status)
				fmt.Fprintf(out, "Duration:  %s\n", formatDuration(asset.DurationSeconds))
				if asset.ThumbnailPath != "" {
					fmt.Fprintf(out, "Thumbnail: %s\n", asset.ThumbnailPath)
				}
				if transcript, err := store.GetTranscript(cmd.Context(), asset.ID); err == nil {
					fmt.Fprintf(out, "Language:  %s\n", language.DisplayName(transcript.Language))
				} else if !errors.Is(err, queue.ErrNotFound) {
					return err
				}
				fmt.Fprintf(out, "Labels:    %d\n\n", len(labels))
				fmt.Fprint(out, renderJobsTable(out, jobs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newAssetExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <asset-id>",
		Short: "Write an asset's labels and transcript to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				target = textutil.SanitizeFileName(args[0]) + ".xlsx"
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				if err := export.SaveAs(cmd.Context(), store, args[0], target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination workbook (defaults to <asset-id>.xlsx)")
	return cmd
}

func parseAssetStatus(value string) (queue.AssetStatus, error) {
	status := queue.AssetStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case queue.AssetUploaded, queue.AssetProcessing, queue.AssetReady, queue.AssetFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown asset status %q", value)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return textutil.FormatTimecode(seconds)
}

func formatAttempts(attempts int) string {
	return strconv.Itoa(attempts)
}
