package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/story-arbiter/pkg/character"
)

const charactersDir = "characters"

// sheetExtensions are tried in order when resolving a character id
var sheetExtensions = []string{".json", ".yaml", ".yml"}

// FileCharacterGateway reads character sheets from <dataDir>/characters.
// The file name without extension is the character id.
type FileCharacterGateway struct {
	dir    string
	logger *slog.Logger
}

// Ensure FileCharacterGateway implements character.Gateway interface
var _ character.Gateway = (*FileCharacterGateway)(nil)

func NewFileCharacterGateway(dataDir string, logger *slog.Logger) *FileCharacterGateway {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCharacterGateway{dir: filepath.Join(dataDir, charactersDir), logger: logger}
}

func (g *FileCharacterGateway) GetCharacter(ctx context.Context, id string) (*character.Character, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", character.ErrNotFound, id)
	}

	for _, ext := range sheetExtensions {
		path := filepath.Join(g.dir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read character file %s: %w", path, err)
		}

		c, err := parseSheet(id, ext, data)
		if err != nil {
			g.logger.Error("Invalid character sheet", "path", path, "error", err)
			return nil, fmt.Errorf("failed to parse character file %s: %w", path, err)
		}
		return c, nil
	}

	return nil, fmt.Errorf("%w: %s", character.ErrNotFound, id)
}

// ListCharacters returns the ids of every sheet in the directory, sorted
func (g *FileCharacterGateway) ListCharacters(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read characters directory: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isSheetExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func isSheetExtension(ext string) bool {
	for _, e := range sheetExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// parseSheet converts YAML to JSON so both formats go through character.Parse.
// The file name supplies the id when the sheet has none.
func parseSheet(id, ext string, data []byte) (*character.Character, error) {
	var doc map[string]any
	if ext == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal character: %w", err)
		}
	} else {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal character yaml: %w", err)
		}
		m, ok := stringifyKeys(raw).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("character yaml must be a mapping")
		}
		doc = m
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if v, _ := doc["id"].(string); v == "" {
		doc["id"] = id
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize character: %w", err)
	}
	return character.Parse(normalized)
}

// stringifyKeys rewrites YAML maps with non-string keys (such as numeric slot
// levels) into JSON-compatible maps
func stringifyKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = stringifyKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringifyKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = stringifyKeys(t[i])
		}
		return t
	default:
		return v
	}
}
