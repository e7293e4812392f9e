package handlers

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/pkg/browse"
)

//go:embed templates/listing.html
var templateFS embed.FS

var listingTemplate = template.Must(
	template.New("listing.html").
		Funcs(template.FuncMap{
			"humanSize":  humanSize,
			"formatTime": formatTime,
		}).
		ParseFS(templateFS, "templates/listing.html"),
)

// breadcrumb is one segment of the listing page header path.
type breadcrumb struct {
	Name string
	Href string
	Last bool
}

// listingRow is one table row of the listing page.
type listingRow struct {
	Name         string
	Href         string
	ViewHref     string
	IsFolder     bool
	SizeText     string
	CountText    string
	ModifiedText string
}

type listingPage struct {
	Prefix      string
	Breadcrumbs []breadcrumb
	Rows        []listingRow
	FolderCount int
	FileCount   int
	TotalSize   string
	SnapshotAt  string
	Empty       bool
}

func renderListingPage(w http.ResponseWriter, listing *browse.Listing) {
	folders, files, totalBytes := pageTotals(listing.Entries)
	page := listingPage{
		Prefix:      "/" + listing.Prefix,
		Breadcrumbs: buildBreadcrumbs(listing.Prefix),
		Rows:        buildRows(listing),
		FolderCount: folders,
		FileCount:   files,
		TotalSize:   humanSize(totalBytes),
		Empty:       len(listing.Entries) == 0,
	}
	if !listing.SnapshotAt.IsZero() {
		page.SnapshotAt = formatTime(listing.SnapshotAt)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := listingTemplate.Execute(w, page); err != nil {
		observability.Logger.Error("render listing page", zap.Error(err))
	}
}

// pageTotals sums the listing for the header bar. Folders without snapshot
// metrics count as folders but contribute no bytes.
func pageTotals(entries []browse.Entry) (folders, files int, totalBytes int64) {
	for _, e := range entries {
		if e.IsFolder {
			folders++
			if e.HasMetrics {
				totalBytes += e.Size
			}
			continue
		}
		files++
		totalBytes += e.Size
	}
	return folders, files, totalBytes
}

func buildBreadcrumbs(prefix string) []breadcrumb {
	crumbs := []breadcrumb{{Name: "root", Href: "/"}}

	trimmed := strings.TrimSuffix(prefix, "/")
	if trimmed != "" {
		href := "/"
		for _, seg := range strings.Split(trimmed, "/") {
			href += seg + "/"
			crumbs = append(crumbs, breadcrumb{Name: seg, Href: href})
		}
	}
	crumbs[len(crumbs)-1].Last = true
	return crumbs
}

func buildRows(listing *browse.Listing) []listingRow {
	rows := make([]listingRow, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		row := listingRow{
			Name:     e.Name,
			Href:     "/" + e.Key,
			IsFolder: e.IsFolder,
		}
		switch {
		case e.IsFolder && e.HasMetrics:
			row.SizeText = humanSize(e.Size)
			row.CountText = fmt.Sprintf("%d", e.FileCount)
			row.ModifiedText = formatTime(e.LastModified)
		case e.IsFolder:
			// No snapshot entry: folder shows without numbers.
			row.SizeText = "—"
			row.CountText = "—"
			row.ModifiedText = "—"
		default:
			row.SizeText = humanSize(e.Size)
			row.ModifiedText = formatTime(e.LastModified)
			if strings.HasSuffix(strings.ToLower(e.Key), ".json") {
				row.ViewHref = "/" + e.Key + "?view"
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// writeListingJSON is the machine-readable listing representation.
func writeListingJSON(w http.ResponseWriter, listing *browse.Listing) {
	type jsonEntry struct {
		Name         string     `json:"name"`
		Type         string     `json:"type"`
		Size         *int64     `json:"size,omitempty"`
		FileCount    *int64     `json:"file_count,omitempty"`
		LastModified *time.Time `json:"last_modified,omitempty"`
	}

	entries := make([]jsonEntry, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		entry := jsonEntry{Name: e.Name, Type: "file"}
		if e.IsFolder {
			entry.Type = "folder"
			if e.HasMetrics {
				size, count, mod := e.Size, e.FileCount, e.LastModified
				entry.Size = &size
				entry.FileCount = &count
				entry.LastModified = &mod
			}
		} else {
			size, mod := e.Size, e.LastModified
			entry.Size = &size
			entry.LastModified = &mod
		}
		entries = append(entries, entry)
	}

	body := struct {
		Prefix     string      `json:"prefix"`
		SnapshotAt *time.Time  `json:"snapshot_generated_at,omitempty"`
		Entries    []jsonEntry `json:"entries"`
	}{
		Prefix:  "/" + listing.Prefix,
		Entries: entries,
	}
	if !listing.SnapshotAt.IsZero() {
		at := listing.SnapshotAt
		body.SnapshotAt = &at
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.Logger.Error("encode listing", zap.Error(err))
	}
}

// humanSize renders a byte count the way directory listings usually do.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for u := n / unit; u >= unit; u /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
