package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckVersionCompatibility reports whether a report written by writerVersion
// can be read by readerVersion.
//
// Compatibility Rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 0.3.0 reads reports of 0.3.7)
func CheckVersionCompatibility(readerVersion, writerVersion string) error {
	readerVersion = strings.TrimPrefix(readerVersion, "v")
	writerVersion = strings.TrimPrefix(writerVersion, "v")

	if readerVersion == "main" || writerVersion == "main" {
		return nil
	}

	reader, err := semver.NewVersion(readerVersion)
	if err != nil {
		return fmt.Errorf("invalid reader version '%s': %w", readerVersion, err)
	}

	writer, err := semver.NewVersion(writerVersion)
	if err != nil {
		return fmt.Errorf("invalid report version '%s': %w", writerVersion, err)
	}

	if reader.Major() != writer.Major() {
		return fmt.Errorf("major version mismatch: reader is %d.x.x but report was written by %d.x.x",
			reader.Major(), writer.Major())
	}

	if reader.Minor() != writer.Minor() {
		return fmt.Errorf("minor version mismatch: reader is %d.%d.x but report was written by %d.%d.x",
			reader.Major(), reader.Minor(),
			writer.Major(), writer.Minor())
	}

	return nil
}
