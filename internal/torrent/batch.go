package torrent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// batchWorkers caps how many jobs hash concurrently, each job already
// parallelizes its own piece hashing.
const batchWorkers = 4

// BatchConfig is the YAML jobs file driving batch creation
type BatchConfig struct {
	Version int        `yaml:"version"`
	Jobs    []BatchJob `yaml:"jobs"`
}

// BatchJob describes one torrent to create. Relative path and output
// entries are resolved against the directory of the config file.
type BatchJob struct {
	Output          string   `yaml:"output"`
	Path            string   `yaml:"path"`
	Name            string   `yaml:"name"`
	Trackers        []string `yaml:"trackers"`
	WebSeeds        []string `yaml:"webseeds"`
	Private         bool     `yaml:"private"`
	PieceLength     uint     `yaml:"piece_length"`
	MaxPieceLength  uint     `yaml:"max_piece_length"`
	Comment         string   `yaml:"comment"`
	Source          string   `yaml:"source"`
	NoDate          bool     `yaml:"no_date"`
	Mode            string   `yaml:"mode"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	IncludePatterns []string `yaml:"include_patterns"`
}

// BatchResult holds the outcome of a single job in the batch
type BatchResult struct {
	Job      BatchJob
	Success  bool
	Error    error
	Info     *TorrentInfo
	Trackers []string
}

// ProcessBatch creates every torrent described by the config file, running
// jobs through a small worker pool. Results come back in job order, a failed
// job carries its error instead of aborting the batch.
func ProcessBatch(configPath string, verbose bool, quiet bool, version string) ([]BatchResult, error) {
	config, err := loadBatchConfig(configPath)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(configPath)
	results := make([]BatchResult, len(config.Jobs))

	numWorkers := batchWorkers
	if numWorkers > len(config.Jobs) {
		numWorkers = len(config.Jobs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = processBatchJob(config.Jobs[idx], baseDir, verbose, quiet, version)
			}
		}()
	}

	for i := range config.Jobs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// loadBatchConfig reads and validates the jobs file
func loadBatchConfig(configPath string) (*BatchConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read batch config: %w", err)
	}

	var config BatchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse batch config: %w", err)
	}

	if config.Version != 1 {
		return nil, fmt.Errorf("unsupported batch config version: %d", config.Version)
	}
	if len(config.Jobs) == 0 {
		return nil, fmt.Errorf("no jobs defined in config")
	}

	for i, job := range config.Jobs {
		if job.Path == "" {
			return nil, fmt.Errorf("job %d: path is required", i+1)
		}
		if job.Output == "" {
			return nil, fmt.Errorf("job %d: output is required", i+1)
		}
		if _, err := ParseMode(job.Mode); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
	}

	return &config, nil
}

// processBatchJob runs one job through the regular creation pipeline with a
// batch display, so per job progress output stays suppressed.
func processBatchJob(job BatchJob, baseDir string, verbose bool, quiet bool, version string) BatchResult {
	result := BatchResult{Job: job, Trackers: job.Trackers}

	mode, err := ParseMode(job.Mode)
	if err != nil {
		result.Error = err
		return result
	}

	opts := CreateTorrentOptions{
		Path:            resolveBatchPath(baseDir, job.Path),
		Name:            job.Name,
		OutputPath:      resolveBatchPath(baseDir, job.Output),
		TrackerURLs:     job.Trackers,
		WebSeeds:        job.WebSeeds,
		Comment:         job.Comment,
		Source:          job.Source,
		Mode:            mode,
		IsPrivate:       job.Private,
		NoDate:          job.NoDate,
		Verbose:         verbose,
		Quiet:           quiet,
		ExcludePatterns: job.ExcludePatterns,
		IncludePatterns: job.IncludePatterns,
		Version:         version,
	}
	if job.PieceLength != 0 {
		pieceLen := job.PieceLength
		opts.PieceLengthExp = &pieceLen
	}
	if job.MaxPieceLength != 0 {
		maxPieceLen := job.MaxPieceLength
		opts.MaxPieceLength = &maxPieceLen
	}

	display := NewDisplay(NewFormatter(verbose))
	display.SetBatch(true)
	display.SetQuiet(quiet)

	info, err := create(opts, display)
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Info = info
	return result
}

// resolveBatchPath anchors relative job paths at the config file's directory
func resolveBatchPath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
