package utils

import (
	"fmt"
	"strings"
)

// FormatPieceSize returns a human readable size for a 2^exp piece length,
// using KiB below 1 MiB and MiB above
func FormatPieceSize(exp uint) string {
	kib := uint64(1) << (exp - 10)
	if kib >= 1024 {
		return fmt.Sprintf("%d MiB", kib/1024)
	}
	return fmt.Sprintf("%d KiB", kib)
}

// filenameReplacer substitutes characters that are invalid or awkward in filenames
var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// SanitizeFilename replaces characters that are invalid in filenames
func SanitizeFilename(input string) string {
	return filenameReplacer.Replace(input)
}

// GetDomainPrefix extracts a short tracker identifier from an announce URL,
// suitable as an output filename prefix. "https://tracker.example.com:2710/announce"
// becomes "example". Returns "modified" when no usable domain is present.
func GetDomainPrefix(trackerURL string) string {
	domain := strings.TrimSpace(trackerURL)
	if domain == "" {
		return "modified"
	}

	if _, after, ok := strings.Cut(domain, "://"); ok {
		domain = after
	}
	domain, _, _ = strings.Cut(domain, "/")
	domain, _, _ = strings.Cut(domain, ":")
	domain = strings.TrimPrefix(domain, "www.")

	if domain == "" {
		return "modified"
	}

	parts := strings.Split(domain, ".")
	if len(parts) > 2 {
		// subdomains keep the second-to-last part: tracker.example.com -> example
		domain = parts[len(parts)-2]
	} else if len(parts) == 2 {
		domain = parts[0]
	}

	return SanitizeFilename(domain)
}
