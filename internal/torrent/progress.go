package torrent

// Displayer is implemented by progress sinks for scanning and hashing.
// The CLI uses Display, batch mode swaps in a silenced instance.
type Displayer interface {
	ShowProgress(total int)
	UpdateProgress(completed int, hashrate float64)
	ShowFiles(files []fileEntry)
	ShowSeasonPackWarnings(info *SeasonPackInfo)
	FinishProgress()
	IsBatch() bool
	ShowMessage(msg string)
	ShowWarning(msg string)
}
