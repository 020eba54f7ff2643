package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"riptide/internal/logging"
	"riptide/internal/services"
)

// ValidateTarget verifies that finalPath resolves strictly inside root.
func ValidateTarget(root, finalPath string, logger *slog.Logger) error {
	finalPath = strings.TrimSpace(finalPath)
	if finalPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"organizing",
			"validate target",
			"Final path is required",
			nil,
		)
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(finalPath))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		if logger != nil {
			logger.Error("target path validation failed",
				logging.String("final_path", finalPath),
				logging.String("download_root", root),
				logging.String(logging.FieldEventType, "target_validation_failed"),
				logging.String(logging.FieldErrorHint, "check download_root and the path formatter templates"),
			)
		}
		return services.Wrap(
			services.ErrConfiguration,
			"organizing",
			"validate target",
			fmt.Sprintf("Path %q escapes download root %q", finalPath, root),
			nil,
		)
	}
	return nil
}
