package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mktorlabs/mktor/internal/modify"
	"github.com/mktorlabs/mktor/internal/torrent"
)

var (
	modifyPresetName    string
	modifyPresetFile    string
	modifyOutputDir     string
	modifyOutputPattern string
	modifyDryRun        bool
	modifyNoDate        bool
	modifyNoCreator     bool
	modifyVerbose       bool
	modifyTracker       string
	modifyWebSeeds      []string
	modifyPrivate       bool = true // default to true like create
	modifyComment       string
	modifySource        string
)

var modifyCmd = &cobra.Command{
	Use:   "modify [torrent files...]",
	Short: "Modify existing torrent files using a preset",
	Long: `Modify existing torrent files using a preset.
This allows batch modification of torrent files with new tracker URLs, source tags, etc.
Original files are preserved and new files are created with -[preset] or -modified suffix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runModify,
}

func init() {
	modifyCmd.Flags().SortFlags = false
	modifyCmd.Flags().BoolP("help", "h", false, "help for modify")
	if err := modifyCmd.Flags().MarkHidden("help"); err != nil {
		panic(fmt.Errorf("could not mark help flag as hidden: %w", err))
	}

	modifyCmd.Flags().StringVarP(&modifyPresetName, "preset", "P", "", "use preset from config")
	modifyCmd.Flags().StringVar(&modifyPresetFile, "preset-file", "", "preset config file (default: ~/.config/mktor/presets.yaml)")
	modifyCmd.Flags().StringVar(&modifyOutputDir, "output-dir", "", "output directory for modified files")
	modifyCmd.Flags().StringVar(&modifyOutputPattern, "output-pattern", "", "fixed output filename (\".torrent\" appended when missing)")
	modifyCmd.Flags().BoolVarP(&modifyDryRun, "dry-run", "n", false, "show what would be modified without making changes")
	modifyCmd.Flags().BoolVarP(&modifyNoDate, "no-date", "d", false, "don't update creation date")
	modifyCmd.Flags().BoolVarP(&modifyNoCreator, "no-creator", "", false, "don't update creator")
	modifyCmd.Flags().BoolVarP(&modifyVerbose, "verbose", "v", false, "be verbose")

	modifyCmd.Flags().StringVarP(&modifyTracker, "tracker", "t", "", "tracker URL")
	modifyCmd.Flags().StringArrayVarP(&modifyWebSeeds, "web-seed", "w", nil, "add web seed URLs")
	modifyCmd.Flags().BoolVarP(&modifyPrivate, "private", "p", true, "make torrent private (default: true)")
	modifyCmd.Flags().StringVarP(&modifyComment, "comment", "c", "", "add comment")
	modifyCmd.Flags().StringVarP(&modifySource, "source", "s", "", "add source string")
}

func runModify(cmd *cobra.Command, args []string) error {
	start := time.Now()

	display := torrent.NewDisplay(torrent.NewFormatter(modifyVerbose))
	display.ShowMessage(fmt.Sprintf("Modifying %d torrent files...", len(args)))

	// build opts, including our override flags defined above
	opts := modify.Options{
		PresetName:    modifyPresetName,
		PresetFile:    modifyPresetFile,
		OutputDir:     modifyOutputDir,
		OutputPattern: modifyOutputPattern,
		NoDate:        modifyNoDate,
		NoCreator:     modifyNoCreator,
		DryRun:        modifyDryRun,
		Verbose:       modifyVerbose,
		TrackerURL:    modifyTracker,
		WebSeeds:      modifyWebSeeds,
		Comment:       modifyComment,
		Source:        modifySource,
		Version:       version,
	}
	// only pass the private flag when it was given, a plain modify
	// should not flip the private bit and change the infohash
	if cmd.Flags().Changed("private") {
		opts.IsPrivate = &modifyPrivate
	}

	results, err := modify.ProcessTorrents(args, opts)
	if err != nil {
		return fmt.Errorf("could not process torrent files: %w", err)
	}

	// display results
	successCount := 0
	for _, result := range results {
		if result.Error != nil {
			display.ShowError(fmt.Sprintf("Error processing %s: %v", result.Path, result.Error))
			continue
		}

		if !result.WasModified {
			display.ShowMessage(fmt.Sprintf("Skipping %s (no changes needed)", result.Path))
			continue
		}

		if opts.DryRun {
			display.ShowMessage(fmt.Sprintf("Would modify %s", result.Path))
			continue
		}

		if opts.Verbose {
			// load the modified torrent to display its info
			t, err := torrent.LoadFromFile(result.OutputPath)
			if err == nil {
				if info := t.GetInfo(); info != nil {
					display.ShowTorrentInfo(t, info)
				}
			}
		}

		display.ShowOutputPathWithTime(result.OutputPath, time.Since(start))
		successCount++
	}

	return nil
}
