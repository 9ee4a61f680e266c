package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/mktorlabs/mktor/internal/preset"
	"github.com/mktorlabs/mktor/internal/torrent"
)

// createOptions encapsulates all command-line flag values for the create command
type createOptions struct {
	pieceLengthExp    *uint // for 2^n piece length, nil means automatic
	maxPieceLengthExp *uint // for maximum 2^n piece length, nil means no limit
	comment           string
	outputPath        string
	name              string
	source            string
	batchFile         string
	presetName        string
	presetFile        string
	trackerURLs       []string
	webSeeds          []string
	excludePatterns   []string
	includePatterns   []string
	isPrivate         bool
	v2                bool
	hybrid            bool
	noDate            bool
	noCreator         bool
	verbose           bool
	entropy           bool
	quiet             bool
	skipPrefix        bool
	force             bool
	dryRun            bool
}

// options instance holds all flag values for the create command
var options = createOptions{
	isPrivate: true, // default value for private flag
}

var createCmd = &cobra.Command{
	Use:   "create [path]",
	Short: "Create a new torrent file",
	Long: `Create a new torrent file from a file or directory.
Supports v1, v2 and hybrid formats, batch mode using a YAML config file, and presets for commonly used settings.
When a tracker URL is provided, the output filename will use the tracker domain (without TLD) as prefix by default (e.g. "example_filename.torrent"). This behavior can be disabled with --skip-prefix.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("accepts at most one arg")
		}
		if len(args) == 0 && options.batchFile == "" {
			presetFlag := cmd.Flags().Lookup("preset")
			if presetFlag != nil && presetFlag.Changed {
				return fmt.Errorf("when using a preset (-P/--preset), you must provide a path to the content")
			}
			return fmt.Errorf("requires a path argument or --batch flag")
		}
		if len(args) == 1 && options.batchFile != "" {
			return fmt.Errorf("cannot specify both path argument and --batch flag")
		}
		return nil
	},
	RunE:                       runCreate,
	DisableFlagsInUseLine:      true,
	SuggestionsMinimumDistance: 1,
	SilenceUsage:               true,
}

func init() {
	createCmd.Flags().SortFlags = false
	createCmd.Flags().BoolP("help", "h", false, "help for create")
	if err := createCmd.Flags().MarkHidden("help"); err != nil {
		// This is initialization code, so we should panic
		panic(fmt.Errorf("failed to mark help flag as hidden: %w", err))
	}

	createCmd.Flags().StringVarP(&options.batchFile, "batch", "b", "", "batch config file (YAML)")
	createCmd.Flags().StringVarP(&options.presetName, "preset", "P", "", "use preset from config")
	createCmd.Flags().StringVar(&options.presetFile, "preset-file", "", "preset config file (default ~/.config/mktor/presets.yaml)")
	createCmd.Flags().StringArrayVarP(&options.trackerURLs, "tracker", "t", nil, "tracker URL (repeatable, one tier per flag, comma separated within a tier)")
	createCmd.Flags().StringArrayVarP(&options.webSeeds, "web-seed", "w", nil, "add web seed URLs")
	createCmd.Flags().BoolVarP(&options.isPrivate, "private", "p", true, "make torrent private")
	createCmd.Flags().StringVarP(&options.comment, "comment", "c", "", "add comment")
	createCmd.Flags().BoolVar(&options.v2, "v2", false, "create a v2 only torrent")
	createCmd.Flags().BoolVar(&options.hybrid, "hybrid", false, "create a hybrid v1+v2 torrent")

	// piece length flag allows setting a fixed piece size of 2^n bytes
	// if not specified, piece length is calculated automatically based on total size
	var defaultPieceLength, defaultMaxPieceLength uint
	createCmd.Flags().UintVarP(&defaultPieceLength, "piece-length", "l", 0, "set piece length to 2^n bytes (15-28, automatic if not specified)")
	createCmd.Flags().UintVarP(&defaultMaxPieceLength, "max-piece-length", "m", 0, "limit maximum piece length to 2^n bytes (15-28, unlimited if not specified)")
	createCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("piece-length") {
			options.pieceLengthExp = &defaultPieceLength
		}
		if cmd.Flags().Changed("max-piece-length") {
			options.maxPieceLengthExp = &defaultMaxPieceLength
		}
	}

	createCmd.Flags().StringVarP(&options.outputPath, "output", "o", "", "set output path (default: <name>.torrent, \"-\" writes to stdout)")
	createCmd.Flags().StringVarP(&options.name, "name", "n", "", "override torrent name (default: basename of content path)")
	createCmd.Flags().StringVarP(&options.source, "source", "s", "", "add source string")
	createCmd.Flags().BoolVarP(&options.noDate, "no-date", "d", false, "don't write creation date")
	createCmd.Flags().BoolVarP(&options.noCreator, "no-creator", "", false, "don't write creator")
	createCmd.Flags().BoolVarP(&options.entropy, "entropy", "e", false, "randomize info hash by adding entropy field")
	createCmd.Flags().BoolVarP(&options.force, "force", "f", false, "overwrite existing output file")
	createCmd.Flags().BoolVar(&options.dryRun, "dry-run", false, "scan content and report piece settings without hashing or writing")
	createCmd.Flags().BoolVarP(&options.verbose, "verbose", "v", false, "be verbose")
	createCmd.Flags().BoolVar(&options.quiet, "quiet", false, "reduced output mode (prints only final torrent path)")
	createCmd.Flags().BoolVarP(&options.skipPrefix, "skip-prefix", "", false, "don't add tracker domain prefix to output filename")
	createCmd.Flags().StringArrayVarP(&options.excludePatterns, "exclude", "", nil, "exclude files matching these patterns (e.g., \"*.nfo,*.jpg\" or --exclude \"*.nfo\" --exclude \"*.jpg\")")
	createCmd.Flags().StringArrayVarP(&options.includePatterns, "include", "", nil, "include only files matching these patterns (e.g., \"*.mkv,*.mp4\" or --include \"*.mkv\" --include \"*.mp4\")")

	createCmd.Flags().String("cpuprofile", "", "write cpu profile to file (development flag)")

	createCmd.SetUsageTemplate(`Usage:
  {{.CommandPath}} /path/to/content [flags]

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
`)
}

func runCreate(cmd *cobra.Command, args []string) error {
	if options.v2 && options.hybrid {
		return fmt.Errorf("--v2 and --hybrid are mutually exclusive")
	}
	mode := torrent.ModeV1
	if options.v2 {
		mode = torrent.ModeV2
	}
	if options.hybrid {
		mode = torrent.ModeHybrid
	}

	if cpuprofile, _ := cmd.Flags().GetString("cpuprofile"); cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	start := time.Now()

	// batch mode
	if options.batchFile != "" {
		results, err := torrent.ProcessBatch(options.batchFile, options.verbose, options.quiet, version)
		if err != nil {
			return fmt.Errorf("batch processing failed: %w", err)
		}

		if options.quiet {
			// in quiet mode, only print the paths to the created torrent files
			for _, result := range results {
				if result.Success {
					fmt.Println("Wrote:", result.Info.Path)
				}
			}
		} else {
			display := torrent.NewDisplay(torrent.NewFormatter(options.verbose))
			display.ShowBatchResults(results, time.Since(start))
		}
		return nil
	}

	// get input path from args
	inputPath := args[0]

	// load preset if specified
	var opts torrent.CreateTorrentOptions
	if options.presetName != "" {
		presetPath, err := preset.FindPresetFile(options.presetFile)
		if err != nil {
			return fmt.Errorf("could not find preset file: %w", err)
		}

		presets, err := preset.Load(presetPath)
		if err != nil {
			return fmt.Errorf("could not load presets: %w", err)
		}

		presetOpts, err := presets.GetPreset(options.presetName)
		if err != nil {
			return fmt.Errorf("could not get preset: %w", err)
		}

		isPrivate := true
		if presetOpts.Private != nil {
			isPrivate = *presetOpts.Private
		}

		// convert preset to options
		opts = torrent.CreateTorrentOptions{
			Path:            inputPath,
			TrackerURLs:     slices.Clone(presetOpts.Trackers),
			WebSeeds:        slices.Clone(presetOpts.WebSeeds),
			IsPrivate:       isPrivate,
			Comment:         presetOpts.Comment,
			Source:          presetOpts.Source,
			NoDate:          presetOpts.NoDate != nil && *presetOpts.NoDate,
			NoCreator:       presetOpts.NoCreator != nil && *presetOpts.NoCreator,
			SkipPrefix:      presetOpts.SkipPrefix != nil && *presetOpts.SkipPrefix,
			Verbose:         options.verbose,
			Version:         version,
			Quiet:           options.quiet,
			ExcludePatterns: slices.Clone(presetOpts.ExcludePatterns),
			IncludePatterns: slices.Clone(presetOpts.IncludePatterns),
		}

		if presetOpts.Mode != "" {
			presetMode, err := torrent.ParseMode(presetOpts.Mode)
			if err != nil {
				return fmt.Errorf("preset %q: %w", options.presetName, err)
			}
			opts.Mode = presetMode
		}

		if presetOpts.PieceLength != 0 {
			pieceLen := presetOpts.PieceLength
			opts.PieceLengthExp = &pieceLen
		}

		if presetOpts.MaxPieceLength != 0 {
			maxPieceLen := presetOpts.MaxPieceLength
			opts.MaxPieceLength = &maxPieceLen
		}

		// override preset options with command line flags if specified
		if cmd.Flags().Changed("tracker") {
			opts.TrackerURLs = options.trackerURLs
		}
		if cmd.Flags().Changed("web-seed") {
			opts.WebSeeds = options.webSeeds
		}
		if cmd.Flags().Changed("private") {
			opts.IsPrivate = options.isPrivate
		}
		if cmd.Flags().Changed("comment") {
			opts.Comment = options.comment
		}
		if cmd.Flags().Changed("piece-length") {
			opts.PieceLengthExp = options.pieceLengthExp
		}
		if cmd.Flags().Changed("max-piece-length") {
			opts.MaxPieceLength = options.maxPieceLengthExp
		}
		if cmd.Flags().Changed("source") {
			opts.Source = options.source
		}
		if cmd.Flags().Changed("no-date") {
			opts.NoDate = options.noDate
		}
		if cmd.Flags().Changed("no-creator") {
			opts.NoCreator = options.noCreator
		}
		if cmd.Flags().Changed("skip-prefix") {
			opts.SkipPrefix = options.skipPrefix
		}
		if cmd.Flags().Changed("exclude") {
			opts.ExcludePatterns = append(opts.ExcludePatterns, options.excludePatterns...)
		}
		if cmd.Flags().Changed("include") {
			opts.IncludePatterns = append(opts.IncludePatterns, options.includePatterns...)
		}
		if cmd.Flags().Changed("v2") || cmd.Flags().Changed("hybrid") {
			opts.Mode = mode
		}
		if cmd.Flags().Changed("entropy") {
			opts.Entropy = options.entropy
		} else if presetOpts.Entropy != nil {
			opts.Entropy = *presetOpts.Entropy
		}
	} else {
		// use command line options
		opts = torrent.CreateTorrentOptions{
			Path:            inputPath,
			TrackerURLs:     options.trackerURLs,
			WebSeeds:        options.webSeeds,
			IsPrivate:       options.isPrivate,
			Comment:         options.comment,
			Mode:            mode,
			PieceLengthExp:  options.pieceLengthExp,
			MaxPieceLength:  options.maxPieceLengthExp,
			Source:          options.source,
			NoDate:          options.noDate,
			NoCreator:       options.noCreator,
			Verbose:         options.verbose,
			Version:         version,
			Entropy:         options.entropy,
			Quiet:           options.quiet,
			SkipPrefix:      options.skipPrefix,
			ExcludePatterns: options.excludePatterns,
			IncludePatterns: options.includePatterns,
		}
	}

	// set output path and name overrides if specified
	if options.outputPath != "" {
		opts.OutputPath = options.outputPath
	}
	if options.name != "" {
		opts.Name = options.name
	}
	opts.Force = options.force
	opts.DryRun = options.dryRun

	// create torrent
	torrentInfo, err := torrent.Create(opts)
	if err != nil {
		return err
	}

	// dry run reporting happens inside Create, nothing was written
	if options.dryRun {
		return nil
	}

	// the torrent went to stdout, keep it clean
	if torrentInfo.Path == "-" {
		return nil
	}

	// in quiet mode, only print the path to the created torrent file
	if options.quiet {
		fmt.Println("Wrote:", torrentInfo.Path)
	} else {
		display := torrent.NewDisplay(torrent.NewFormatter(options.verbose))
		display.ShowOutputPathWithTime(torrentInfo.Path, time.Since(start))
	}

	return nil
}
