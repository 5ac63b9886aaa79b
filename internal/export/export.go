// Package export renders an asset's labels and transcript as an xlsx
// workbook for operators.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"cubby/internal/queue"
	"cubby/internal/services"
)

// Sheet names in the generated workbook.
const (
	SheetAsset      = "Asset"
	SheetLabels     = "Labels"
	SheetTranscript = "Transcript"
)

var (
	labelHeaders      = []string{"Name", "Confidence", "Start", "End", "Start (s)", "End (s)"}
	transcriptHeaders = []string{"Seq", "Start", "End", "Text"}
)

// Store is the read side of the queue store the exporter needs.
type Store interface {
	GetAsset(ctx context.Context, id string) (*queue.Asset, error)
	ListSegments(ctx context.Context, assetID string) ([]queue.Segment, error)
	ListLabels(ctx context.Context, assetID string) ([]queue.Label, error)
}

// Workbook builds the workbook in memory. Callers must Close the result.
func Workbook(ctx context.Context, store Store, assetID string) (*excelize.File, error) {
	asset, err := store.GetAsset(ctx, assetID)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "export", "load asset", assetID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("export: load asset: %w", err)
	}
	labels, err := store.ListLabels(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("export: list labels: %w", err)
	}
	segments, err := store.ListSegments(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("export: list segments: %w", err)
	}

	f := excelize.NewFile()
	if err := build(f, asset, labels, segments); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: %w", err)
	}
	return f, nil
}

// Write streams the workbook for assetID to w.
func Write(ctx context.Context, store Store, assetID string, w io.Writer) error {
	f, err := Workbook(ctx, store, assetID)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// SaveAs writes the workbook for assetID to path.
func SaveAs(ctx context.Context, store Store, assetID, path string) error {
	f, err := Workbook(ctx, store, assetID)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func build(f *excelize.File, asset *queue.Asset, labels []queue.Label, segments []queue.Segment) error {
	index, err := f.NewSheet(SheetAsset)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	summary := [][]any{
		{"ID", asset.ID},
		{"Workspace", asset.WorkspaceID},
		{"Filename", asset.Filename},
		{"Storage path", asset.StoragePath},
		{"Status", string(asset.Status)},
		{"Duration (s)", asset.DurationSeconds},
		{"Thumbnail", asset.ThumbnailPath},
		{"Labels", len(labels)},
		{"Segments", len(segments)},
	}
	for i, row := range summary {
		if err := setRow(f, SheetAsset, i+1, row); err != nil {
			return err
		}
	}

	if err := newTable(f, SheetLabels, labelHeaders); err != nil {
		return err
	}
	for i, label := range labels {
		row := []any{label.Name, label.Confidence, label.StartTimecode, label.EndTimecode, label.StartSeconds, label.EndSeconds}
		if err := setRow(f, SheetLabels, i+2, row); err != nil {
			return err
		}
	}

	if err := newTable(f, SheetTranscript, transcriptHeaders); err != nil {
		return err
	}
	for i, seg := range segments {
		row := []any{seg.Seq, seg.StartTimecode, seg.EndTimecode, strings.TrimSpace(seg.Text)}
		if err := setRow(f, SheetTranscript, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetTranscript, "D", "D", 100)
}

func newTable(f *excelize.File, sheet string, headers []string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
