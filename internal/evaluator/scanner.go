package evaluator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/pkg/logger"
)

const (
	evalSetSuffix    = ".evalset.json"
	testConfigSuffix = ".test_config.json"
)

// ConfigPair is one discovered eval set and its sibling config
type ConfigPair struct {
	EvalSetPath string
	ConfigPath  string
}

// ScanConfigPairs walks root for *.evalset.json files and pairs each with
// the *.test_config.json sharing its base name in the same directory. A set
// without a config is logged and skipped rather than failing the scan.
// Pairs come back sorted by set path so runs are deterministic.
func ScanConfigPairs(root string) ([]ConfigPair, error) {
	var pairs []ConfigPair

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), evalSetSuffix) {
			return nil
		}

		base := strings.TrimSuffix(d.Name(), evalSetSuffix)
		configPath := filepath.Join(filepath.Dir(path), base+testConfigSuffix)
		if !fileExists(configPath) {
			logger.Warn("eval set has no test config, skipping",
				zap.String("eval_set", path),
				zap.String("expected_config", configPath),
			)
			return nil
		}

		pairs = append(pairs, ConfigPair{EvalSetPath: path, ConfigPath: configPath})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].EvalSetPath < pairs[j].EvalSetPath })
	return pairs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
