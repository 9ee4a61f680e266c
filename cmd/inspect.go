package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/anacrolix/torrent/bencode"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mktorlabs/mktor/internal/preset"
	"github.com/mktorlabs/mktor/internal/torrent"
)

// inspectOptions encapsulates command-line flag values for the inspect command
type inspectOptions struct {
	verbose bool
}

var (
	inspectOpts     = inspectOptions{}
	validateTracker string
	outputFormat    string
	cyan            = color.New(color.FgMagenta, color.Bold).SprintFunc()
	label           = color.New(color.Bold, color.FgHiWhite).SprintFunc()
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <torrent-file>",
	Short: "Inspect a torrent file",
	Long: `Inspect a torrent file, showing its metadata and structure.
Optionally, validate the torrent against known tracker rules.`,
	Args:                       cobra.ExactArgs(1),
	RunE:                       runInspect,
	DisableFlagsInUseLine:      true,
	SuggestionsMinimumDistance: 1,
	SilenceUsage:               true,
}

func init() {
	inspectCmd.Flags().SortFlags = false
	inspectCmd.Flags().BoolVarP(&inspectOpts.verbose, "verbose", "v", false, "show all metadata fields")
	inspectCmd.Flags().StringVarP(&validateTracker, "validate-tracker", "T", "", "validate torrent against rules for a tracker URL or preset name")
	inspectCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "text", "output format ('text' or 'json')")
	inspectCmd.SetUsageTemplate(`Usage:
  {{.CommandPath}} <torrent-file> [flags]

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
`)
}

// resolveValidationTracker resolves the --validate-tracker value, which may be
// a tracker URL or the name of a preset whose first tracker should be used.
func resolveValidationTracker() (trackerURL string, isPreset bool) {
	presetPath, err := preset.FindPresetFile("")
	if err == nil {
		presets, err := preset.Load(presetPath)
		if err == nil {
			presetOpts, err := presets.GetPreset(validateTracker)
			if err == nil && len(presetOpts.Trackers) > 0 {
				return presetOpts.Trackers[0], true
			}
		}
	}
	return validateTracker, false
}

// loadTorrentData reads the torrent file and extracts the parsed torrent,
// info dictionary and raw bytes. In JSON mode it prints the export directly
// and returns nil values.
func loadTorrentData(filePath string) (t *torrent.Torrent, info *torrent.Info, rawBytes []byte, validationResults []torrent.ValidationResult, validationErr error, err error) {
	rawBytes, err = os.ReadFile(filePath)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("error reading file: %w", err)
	}

	t, err = torrent.LoadFromFile(filePath)
	if err != nil {
		return nil, nil, rawBytes, nil, nil, fmt.Errorf("error loading torrent: %w", err)
	}

	info = t.GetInfo()
	if info == nil {
		return t, nil, rawBytes, nil, nil, fmt.Errorf("error parsing info dictionary")
	}

	if validateTracker != "" {
		trackerURL, _ := resolveValidationTracker()
		validationResults, validationErr = torrent.ValidateAgainstTrackerRules(t, info, trackerURL, rawBytes)
	}

	if strings.ToLower(outputFormat) == "json" {
		if validationErr != nil {
			if validationResults == nil {
				validationResults = []torrent.ValidationResult{}
			}
			validationResults = append(validationResults, torrent.ValidationResult{
				Rule:    "Validation Process",
				Status:  torrent.ValidationFail,
				Message: fmt.Sprintf("Error during validation: %v", validationErr),
			})
		}

		jsonData, errGen := torrent.GenerateInspectJSON(t, info, rawBytes, inspectOpts.verbose, validationResults)
		if errGen != nil {
			fmt.Printf(`{"error": "Failed to generate JSON data: %s"}`+"\n", errGen.Error())
			return nil, nil, nil, validationResults, validationErr, errGen
		}
		jsonStr, errMarshal := jsonData.ToJSON()
		if errMarshal != nil {
			fmt.Printf(`{"error": "Failed to marshal JSON data: %s"}`+"\n", errMarshal.Error())
			return nil, nil, nil, validationResults, validationErr, errMarshal
		}
		fmt.Println(jsonStr)
		return nil, nil, nil, validationResults, validationErr, nil
	}

	return t, info, rawBytes, validationResults, validationErr, nil
}

// displayStandardInfo shows the core information about the torrent
func displayStandardInfo(display *torrent.Display, t *torrent.Torrent, info *torrent.Info, validationResults []torrent.ValidationResult, validationErr error) {
	display.ShowTorrentInfo(t, info)

	if validateTracker != "" {
		displayTrackerName, isPreset := resolveValidationTracker()

		displayURL := displayTrackerName
		if parsedURL, parseErr := url.Parse(displayTrackerName); parseErr == nil && parsedURL.Host != "" {
			displayURL = parsedURL.Scheme + "://" + parsedURL.Host + "/..."
		}

		if isPreset {
			fmt.Printf("\n%s %s (using preset '%s')\n", cyan("Validation Results for:"), displayURL, validateTracker)
		} else {
			fmt.Printf("\n%s %s\n", cyan("Validation Results for:"), displayURL)
		}

		if validationErr != nil {
			display.ShowError(fmt.Sprintf("Validation error: %v", validationErr))
		}

		if len(validationResults) > 0 {
			display.ShowValidationResults(validationResults)
		} else if validationErr == nil {
			fmt.Println("  No validation results generated.")
		}
	}
}

// displayVerboseInfo shows additional metadata fields found in the torrent file
func displayVerboseInfo(rawBytes []byte, t *torrent.Torrent) {
	fmt.Printf("%s\n", cyan("Additional metadata:"))

	// display extra root-level fields
	rootMap := make(map[string]interface{})
	if err := bencode.Unmarshal(rawBytes, &rootMap); err == nil {
		standardRoot := map[string]bool{
			"announce": true, "announce-list": true, "comment": true,
			"created by": true, "creation date": true, "info": true,
			"url-list": true, "nodes": true, "piece layers": true,
		}

		for k, v := range rootMap {
			if !standardRoot[k] {
				fmt.Printf("  %-13s %v\n", label(k+":"), v)
			}
		}
	}

	// display extra info-dictionary fields
	infoMap := make(map[string]interface{})
	if err := bencode.Unmarshal(t.InfoBytes, &infoMap); err == nil {
		standardInfo := map[string]bool{
			"name": true, "piece length": true, "pieces": true,
			"files": true, "length": true, "private": true,
			"source": true, "file tree": true, "meta version": true,
		}

		for k, v := range infoMap {
			if !standardInfo[k] {
				fmt.Printf("  %-13s %v\n", label("info."+k+":"), v)
			}
		}
	}
	fmt.Println()
}

// displayFileTreeIfNeeded shows the file tree if the torrent contains multiple files
func displayFileTreeIfNeeded(display *torrent.Display, info *torrent.Info) {
	if info.IsDir() {
		display.ShowFileTree(info)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	torrentPath := args[0]

	t, info, rawBytes, validationResults, validationErr, err := loadTorrentData(torrentPath)
	if err != nil {
		return err
	}

	if t == nil && info == nil && strings.ToLower(outputFormat) == "json" {
		return nil
	}

	display := torrent.NewDisplay(torrent.NewFormatter(inspectOpts.verbose))
	displayStandardInfo(display, t, info, validationResults, validationErr)

	if inspectOpts.verbose {
		displayVerboseInfo(rawBytes, t)
		displayFileTreeIfNeeded(display, info)
	}

	return nil
}
