package torrent

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	progressbar "github.com/schollz/progressbar/v3"
)

var (
	magenta    = color.New(color.FgMagenta).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	success    = color.New(color.FgGreen).SprintFunc()
	label      = color.New(color.FgCyan).SprintFunc()
	highlight  = color.New(color.FgHiWhite).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
	white      = fmt.Sprint
)

type Display struct {
	formatter *Formatter
	bar       *progressbar.ProgressBar
	isBatch   bool
	quiet     bool
}

var _ Displayer = (*Display)(nil)

func NewDisplay(formatter *Formatter) *Display {
	return &Display{
		formatter: formatter,
	}
}

func (d *Display) SetBatch(isBatch bool) {
	d.isBatch = isBatch
}

// SetQuiet silences everything except warnings and errors. Used for batch
// jobs and when the torrent itself goes to stdout.
func (d *Display) SetQuiet(quiet bool) {
	d.quiet = quiet
}

func (d *Display) IsBatch() bool {
	return d.isBatch
}

func (d *Display) ShowProgress(total int) {
	if d.isBatch || d.quiet {
		return
	}
	fmt.Println()
	d.bar = progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan][bold]Hashing pieces...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (d *Display) UpdateProgress(completed int, hashrate float64) {
	if d.isBatch || d.quiet {
		return
	}
	if d.bar != nil {
		if err := d.bar.Set(completed); err != nil {
			log.Printf("failed to update progress bar: %v", err)
		}

		if hashrate > 0 {
			description := fmt.Sprintf("[cyan][bold]Hashing pieces...[reset] [%.2f MB/s]", hashrate/1024/1024)
			d.bar.Describe(description)
		}
	}
}

func (d *Display) FinishProgress() {
	if d.isBatch || d.quiet {
		return
	}
	if d.bar != nil {
		if err := d.bar.Finish(); err != nil {
			log.Printf("failed to finish progress bar: %v", err)
		}
		fmt.Println()
	}
}

func (d *Display) ShowFiles(files []fileEntry) {
	if d.isBatch || d.quiet {
		return
	}

	fmt.Printf("\n%s\n", magenta("Files being hashed:"))
	for i, file := range files {
		prefix := "  ├─"
		if i == len(files)-1 {
			prefix = "  └─"
		}
		fmt.Printf("%s %s (%s)\n",
			prefix,
			success(file.relPath),
			label(humanize.IBytes(uint64(file.length))))
	}
	fmt.Println()
}

func (d *Display) ShowMessage(msg string) {
	if d.quiet || d.isBatch {
		return
	}
	fmt.Printf("%s %s\n", success("\nInfo:"), msg)
}

// Warnings and errors go to stderr so a torrent written to stdout stays
// clean.
func (d *Display) ShowWarning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Warning:"), msg)
}

func (d *Display) ShowError(msg string) {
	fmt.Fprintln(os.Stderr, errorColor(msg))
}

func (d *Display) ShowTorrentInfo(t *Torrent, info *Info) {
	if d.quiet || d.isBatch {
		return
	}

	fmt.Printf("\n%s\n", magenta("Torrent info:"))
	fmt.Printf("  %-13s %s\n", label("Name:"), info.Name)

	v1, v2 := t.InfoHashes()
	if v1 != "" {
		fmt.Printf("  %-13s %s\n", label("Hash:"), v1)
	}
	if v2 != "" {
		fmt.Printf("  %-13s %s\n", label("Hash v2:"), v2)
	}
	if info.MetaVersion == 2 {
		fmt.Printf("  %-13s %d\n", label("Meta version:"), info.MetaVersion)
	}

	fmt.Printf("  %-13s %s\n", label("Size:"), humanize.IBytes(uint64(info.TotalLength())))
	fmt.Printf("  %-13s %s\n", label("Piece length:"), humanize.IBytes(uint64(info.PieceLength)))
	if n := info.NumPieces(); n > 0 {
		fmt.Printf("  %-13s %d\n", label("Pieces:"), n)
	}

	if t.AnnounceList != nil {
		fmt.Printf("  %-13s\n", label("Trackers:"))
		for _, tier := range t.AnnounceList {
			for _, tracker := range tier {
				fmt.Printf("    %s\n", success(tracker))
			}
		}
	} else if t.Announce != "" {
		fmt.Printf("  %-13s %s\n", label("Tracker:"), success(t.Announce))
	}

	if len(t.UrlList) > 0 {
		fmt.Printf("  %-13s\n", label("Web seeds:"))
		for _, seed := range t.UrlList {
			fmt.Printf("    %s\n", highlight(seed))
		}
	}

	if info.Private != nil && *info.Private {
		fmt.Printf("  %-13s %s\n", label("Private:"), "yes")
	}

	if info.Source != "" {
		fmt.Printf("  %-13s %s\n", label("Source:"), info.Source)
	}

	if t.Comment != "" {
		fmt.Printf("  %-13s %s\n", label("Comment:"), t.Comment)
	}

	if t.CreatedBy != "" {
		fmt.Printf("  %-13s %s\n", label("Created by:"), t.CreatedBy)
	}

	if t.CreationDate != 0 {
		creationTime := time.Unix(t.CreationDate, 0)
		fmt.Printf("  %-13s %s\n", label("Created on:"), creationTime.Format("2006-01-02 15:04:05 MST"))
	}

	if count := infoFileCount(info); count > 0 {
		fmt.Printf("  %-13s %d\n", label("Files:"), count)
	}

	if d.formatter.verbose {
		if magnet := t.MagnetLink(); magnet != "" {
			fmt.Printf("  %-13s %s\n", label("Magnet:"), highlight(magnet))
		}
	}
}

// infoFileCount counts regular files, ignoring pad files.
func infoFileCount(info *Info) int {
	if len(info.Files) > 0 {
		count := 0
		for _, f := range info.Files {
			if f.Attr != "p" {
				count++
			}
		}
		return count
	}
	if entries := info.FileTreeEntries(); len(entries) > 1 {
		return len(entries)
	}
	return 0
}

func (d *Display) ShowFileTree(info *Info) {
	if d.quiet || d.isBatch {
		return
	}

	fmt.Printf("\n%s\n", magenta("File tree:"))
	fmt.Printf("%s %s\n", "└─", success(info.Name))

	if len(info.Files) > 0 {
		shown := make([]FileInfo, 0, len(info.Files))
		for _, f := range info.Files {
			if f.Attr != "p" {
				shown = append(shown, f)
			}
		}
		for i, file := range shown {
			prefix := "  ├─"
			if i == len(shown)-1 {
				prefix = "  └─"
			}
			fmt.Printf("%s %s (%s)\n",
				prefix,
				success(strings.Join(file.Path, "/")),
				label(humanize.IBytes(uint64(file.Length))))
		}
		return
	}

	entries := info.FileTreeEntries()
	for i, entry := range entries {
		prefix := "  ├─"
		if i == len(entries)-1 {
			prefix = "  └─"
		}
		name := strings.Join(entry.Path, "/")
		if name == "" {
			name = info.Name
		}
		fmt.Printf("%s %s (%s)\n",
			prefix,
			success(name),
			label(humanize.IBytes(uint64(entry.Length))))
	}
}

func (d *Display) ShowOutputPathWithTime(path string, duration time.Duration) {
	if d.quiet || d.isBatch {
		return
	}

	if duration < time.Second {
		fmt.Printf("\n%s %s (%s)\n",
			success("Wrote"),
			white(path),
			magenta(fmt.Sprintf("elapsed %dms", duration.Milliseconds())))
	} else {
		fmt.Printf("\n%s %s (%s)\n",
			success("Wrote"),
			white(path),
			magenta(fmt.Sprintf("elapsed %.2fs", duration.Seconds())))
	}
}

func (d *Display) ShowBatchResults(results []BatchResult, duration time.Duration) {
	fmt.Printf("\n%s\n", magenta("Batch processing results:"))

	successful := 0
	failed := 0
	totalSize := int64(0)

	for _, result := range results {
		if result.Success {
			successful++
			if result.Info != nil {
				totalSize += result.Info.Size
			}
		} else {
			failed++
		}
	}

	fmt.Printf("  %-15s %d\n", label("Total jobs:"), len(results))
	fmt.Printf("  %-15s %s\n", label("Successful:"), success(successful))
	fmt.Printf("  %-15s %s\n", label("Failed:"), errorColor(failed))
	fmt.Printf("  %-15s %s\n", label("Total size:"), humanize.IBytes(uint64(totalSize)))
	fmt.Printf("  %-15s %s\n", label("Processing time:"), d.formatter.FormatDuration(duration))

	if d.formatter.verbose {
		fmt.Printf("\n%s\n", magenta("Detailed results:"))
		for i, result := range results {
			fmt.Printf("\n%s %d:\n", label("Job"), i+1)
			if result.Success {
				fmt.Printf("  %-11s %s\n", label("Status:"), success("Success"))
				fmt.Printf("  %-11s %s\n", label("Output:"), result.Info.Path)
				fmt.Printf("  %-11s %s\n", label("Size:"), humanize.IBytes(uint64(result.Info.Size)))
				fmt.Printf("  %-11s %s\n", label("Info hash:"), result.Info.InfoHash)
				fmt.Printf("  %-11s %s\n", label("Trackers:"), strings.Join(result.Trackers, ", "))
				if result.Info.Files > 0 {
					fmt.Printf("  %-11s %d\n", label("Files:"), result.Info.Files)
				}
			} else {
				fmt.Printf("  %-11s %s\n", label("Status:"), errorColor("Failed"))
				fmt.Printf("  %-11s %v\n", label("Error:"), result.Error)
				fmt.Printf("  %-11s %s\n", label("Input:"), result.Job.Path)
			}
		}
	}
}

func (d *Display) ShowValidationResults(results []ValidationResult) {
	fmt.Printf("\n%s\n", magenta("Tracker rule checks:"))
	for _, result := range results {
		var status string
		switch result.Status {
		case ValidationPass:
			status = success(string(result.Status))
		case ValidationFail:
			status = errorColor(string(result.Status))
		case ValidationWarn:
			status = yellow(string(result.Status))
		default:
			status = label(string(result.Status))
		}
		fmt.Printf("  [%s] %-25s %s\n", status, result.Rule, result.Message)
	}
}

func (d *Display) ShowVerificationResult(result *VerificationResult, duration time.Duration) {
	fmt.Printf("\n%s\n", magenta("Verification results:"))
	fmt.Printf("  %-15s %d\n", label("Total pieces:"), result.TotalPieces)
	fmt.Printf("  %-15s %s\n", label("Good pieces:"), success(result.GoodPieces))
	if result.BadPieces > 0 {
		fmt.Printf("  %-15s %s\n", label("Bad pieces:"), errorColor(result.BadPieces))
	}
	if result.MissingPieces > 0 {
		fmt.Printf("  %-15s %s\n", label("Missing pieces:"), yellow(result.MissingPieces))
	}
	fmt.Printf("  %-15s %.2f%%\n", label("Completion:"), result.Completion)
	fmt.Printf("  %-15s %s\n", label("Check time:"), d.formatter.FormatDuration(duration))

	if len(result.MissingFiles) > 0 {
		fmt.Printf("\n%s\n", yellow("Missing files:"))
		for _, file := range result.MissingFiles {
			fmt.Printf("  %s\n", file)
		}
	}

	if len(result.BadFiles) > 0 {
		fmt.Printf("\n%s\n", errorColor("Files failing verification:"))
		for _, file := range result.BadFiles {
			fmt.Printf("  %s\n", file)
		}
	}

	if d.formatter.verbose && len(result.BadPieceIndices) > 0 {
		fmt.Printf("\n%s %v\n", label("Bad piece indices:"), result.BadPieceIndices)
	}
}

func (d *Display) ShowSeasonPackWarnings(info *SeasonPackInfo) {
	if !info.IsSeasonPack {
		return
	}

	if info.IsSuspicious || len(info.MissingEpisodes) > 0 {
		fmt.Fprintf(os.Stderr, "\n%s %s\n", yellow("Warning:"), "Possible incomplete season pack detected")
		fmt.Fprintf(os.Stderr, "  %-13s %d\n", label("Season number:"), info.Season)
		fmt.Fprintf(os.Stderr, "  %-13s %d\n", label("Highest episode number found:"), info.MaxEpisode)
		fmt.Fprintf(os.Stderr, "  %-13s %d\n", label("Video files:"), info.VideoFileCount)

		if len(info.MissingEpisodes) > 0 {
			fmt.Fprintf(os.Stderr, "  %-13s %v\n", label("Missing episodes:"), info.MissingEpisodes)
		}

		fmt.Fprintln(os.Stderr, yellow("\nThis may be an incomplete season pack. Check files before uploading."))
	}
}

type Formatter struct {
	verbose bool
}

func NewFormatter(verbose bool) *Formatter {
	return &Formatter{verbose: verbose}
}

func (f *Formatter) FormatBytes(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

func (f *Formatter) FormatDuration(dur time.Duration) string {
	if dur < time.Second {
		return fmt.Sprintf("%dms", dur.Milliseconds())
	}
	return humanize.RelTime(time.Now().Add(-dur), time.Now(), "", "")
}
