package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gomind-labs/taskrunner/core"
)

// runDir creates and returns the per-run directory
// <base>/<UTC timestamp>/<session_id>, per spec.md §6.3. The directory
// is created before any step executes.
func runDir(base, sessionID string, now time.Time) (string, error) {
	dir := filepath.Join(base, now.UTC().Format("20060102_150405"), sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// writeArtifact writes name.json under dir with 2-space indentation,
// matching spec.md §6.3's UTF-8 layout contract. Failures are logged
// and swallowed: artifact writes are always best-effort.
func writeArtifact(dir, name string, data interface{}, logger core.Logger) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		logger.Warn("runner: failed to marshal artifact", map[string]interface{}{"name": name, "error": err.Error()})
		return
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Warn("runner: failed to write artifact", map[string]interface{}{"name": name, "error": err.Error()})
	}
}

// writeReport writes report.txt, optionally prefixed (e.g. with the
// "(partial: deadline exceeded)" marker spec.md §5 requires).
func writeReport(dir, prefix string, context map[string]interface{}, logger core.Logger) {
	raw, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		logger.Warn("runner: failed to marshal report", map[string]interface{}{"error": err.Error()})
		return
	}
	body := string(raw)
	if prefix != "" {
		body = prefix + "\n" + body
	}
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		logger.Warn("runner: failed to write report", map[string]interface{}{"error": err.Error()})
	}
}
