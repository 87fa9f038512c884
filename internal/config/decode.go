package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/config/tree"
	"github.com/swarmhost/swarmhost/internal/provider"
)

// Decode builds a RunnerConfig from the raw value tree a script engine
// produced. It runs in three passes: extract callable leaves into a
// path-keyed side table, structurally decode the remaining tree, then
// reattach each callable at its recorded path. A callable whose path
// does not survive the structural pass is logged and skipped, it never
// fails the whole config.
func Decode(raw provider.Value, logger *slog.Logger) (*RunnerConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stripped, extracted := funcs.Extract(raw, "")

	data, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("encode config tree: %w", err)
	}
	cfg := &RunnerConfig{createdAt: time.Now().UTC()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config tree: %w", err)
	}

	for _, path := range funcs.Paths(extracted) {
		node, err := tree.Descend(cfg, path)
		if err != nil {
			logger.Warn("dropping config function with no destination",
				"path", path, "error", err)
			continue
		}
		slot, ok := node.(tree.FuncSlot)
		if !ok {
			logger.Warn("dropping config function at non-callable field",
				"path", path)
			continue
		}
		slot.Attach(extracted[path])
	}

	return cfg, nil
}
