package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	insightsFile  = "insights.json"
	patternsFile  = "patterns.json"
	knowledgeFile = "knowledge.json"
)

// knowledgeDoc is the on-disk shape of knowledge.json.
type knowledgeDoc struct {
	Algorithms map[string]AlgorithmRecord `json:"algorithms"`
	Failures   map[string][]FailureRecord `json:"failures"`
}

// load reads all three knowledge files. Missing files are fine; corrupt
// files are logged and treated as empty so one bad write cannot brick the
// store.
func (s *Store) load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}

	if err := s.loadJSON(insightsFile, &s.insights); err != nil {
		s.logger.Warn("discarding corrupt insights file", "error", err)
		s.insights = nil
	}
	if err := s.loadJSON(patternsFile, &s.patterns); err != nil {
		s.logger.Warn("discarding corrupt patterns file", "error", err)
		s.patterns = map[string][]PatternRecord{}
	}

	var doc knowledgeDoc
	if err := s.loadJSON(knowledgeFile, &doc); err != nil {
		s.logger.Warn("discarding corrupt knowledge file", "error", err)
		doc = knowledgeDoc{}
	}
	if doc.Algorithms != nil {
		s.algorithms = doc.Algorithms
	}
	if doc.Failures != nil {
		s.failures = doc.Failures
	}
	if s.patterns == nil {
		s.patterns = map[string][]PatternRecord{}
	}
	return nil
}

func (s *Store) loadJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) saveInsights() error {
	return s.saveJSON(insightsFile, s.insights)
}

func (s *Store) savePatterns() error {
	return s.saveJSON(patternsFile, s.patterns)
}

func (s *Store) saveKnowledge() error {
	return s.saveJSON(knowledgeFile, knowledgeDoc{
		Algorithms: s.algorithms,
		Failures:   s.failures,
	})
}

// saveJSON writes to a temp file and renames it into place so readers never
// observe a partial document.
func (s *Store) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
