package factors

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tick-adjust-lab/internal/tabular"
)

// namingConventions are the per-security factor file names, tried in order.
var namingConventions = []string{
	"%s.parquet",
	"%s.csv",
	"%s.xlsx",
	"%s_adj.parquet",
	"%s_adjust.parquet",
	"%s_qfq.parquet",
}

// Resolve locates the factor file of a security.
// Per-security names are tried first. Otherwise, if the directory holds exactly
// one readable factor file, it is used as a shared multi-security file.
// Returns ErrNotFound when nothing matches or several shared candidates exist.
func (s *Store) Resolve(securityID string) (string, error) {
	for _, pattern := range namingConventions {
		path := filepath.Join(s.dir, fmt.Sprintf(pattern, securityID))
		if isRegularFile(path) {
			s.logger.Debug("factor file resolved", "security", securityID, "path", path)
			return path, nil
		}
	}

	candidates, err := candidateFiles(s.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, securityID, err)
	}
	if len(candidates) == 1 {
		s.logger.Info("using shared factor file", "security", securityID, "path", candidates[0])
		return candidates[0], nil
	}

	s.logger.Warn("factor file not found", "security", securityID, "dir", s.dir, "candidates", len(candidates))
	return "", fmt.Errorf("%w: %s (%d shared candidates in %s)", ErrNotFound, securityID, len(candidates), s.dir)
}

// candidateFiles lists readable factor files in dir, sorted by name.
func candidateFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if tabular.SupportedExtension(path) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
