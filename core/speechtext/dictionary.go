package speechtext

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary replaces whole words with their pronunciation. All keys are
// matched case-insensitively by one precompiled alternation.
type Dictionary struct {
	replacements map[string]string
	pattern      *regexp.Regexp
}

// NewDictionary compiles entries into a dictionary. Keys that differ only in
// case collapse to the lexicographically first spelling.
func NewDictionary(entries map[string]string) *Dictionary {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	d := &Dictionary{replacements: make(map[string]string, len(keys))}
	alternatives := make([]string, 0, len(keys))
	for _, key := range keys {
		lowered := strings.ToLower(strings.TrimSpace(key))
		if _, ok := d.replacements[lowered]; ok {
			continue
		}
		d.replacements[lowered] = entries[key]
		alternatives = append(alternatives, lowered)
	}
	if len(alternatives) == 0 {
		return d
	}

	// Longest first so that overlapping keys prefer the most specific one
	sort.SliceStable(alternatives, func(i, j int) bool {
		return len(alternatives[i]) > len(alternatives[j])
	})
	for i, alternative := range alternatives {
		alternatives[i] = regexp.QuoteMeta(alternative)
	}

	// Adjacent ASCII word characters are pulled into the match so Apply can
	// reject partial words. Hangul particles attached to a key ("AI는") do
	// not count as part of the word.
	d.pattern = regexp.MustCompile(`(?i)[A-Za-z0-9_]*(?:` + strings.Join(alternatives, "|") + `)[A-Za-z0-9_]*`)
	return d
}

func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.replacements)
}

// Apply replaces every whole-word occurrence of a key in text.
func (d *Dictionary) Apply(text string) string {
	if d == nil || d.pattern == nil || text == "" {
		return text
	}
	return d.pattern.ReplaceAllStringFunc(text, func(match string) string {
		if replacement, ok := d.replacements[strings.ToLower(match)]; ok {
			return replacement
		}
		return match
	})
}

// LoadDictionary reads a dictionary file. The format is picked by extension:
// .yaml/.yml and .json hold a flat string map, anything else is read as
// "key, replacement" lines.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	var entries map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode yaml dictionary %s: %w", path, err)
		}
	case ".json":
		if err := json.NewDecoder(f).Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode json dictionary %s: %w", path, err)
		}
	default:
		entries, err = ReadTextDictionary(f, path)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("dictionary loaded", "file", path, "entries", len(entries))
	return NewDictionary(entries), nil
}

// LoadLanguageDictionary loads dictionary_<lang>.txt from dir. A missing file
// yields an empty dictionary.
func LoadLanguageDictionary(dir, lang string) (*Dictionary, error) {
	path := filepath.Join(dir, "dictionary_"+lang+".txt")
	dictionary, err := LoadDictionary(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no dictionary for language", "lang", lang, "file", path)
		return NewDictionary(nil), nil
	}
	return dictionary, err
}

// ReadTextDictionary parses "key, replacement" lines. Blank lines and lines
// starting with # are ignored, malformed lines are logged and skipped and the
// first definition of a key wins. name is only used in log messages.
func ReadTextDictionary(r io.Reader, name string) (map[string]string, error) {
	entries := map[string]string{}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ",")
		if !found {
			logger.Warn("dictionary line without separator", "file", name, "line", lineNumber)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			logger.Warn("dictionary line with empty key", "file", name, "line", lineNumber)
			continue
		}
		if _, ok := entries[key]; ok {
			continue
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", name, err)
	}
	return entries, nil
}
