// Package prompts provides the externalized LLM prompt templates for every
// agent role. Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var (
	loadOnce sync.Once
	loadErr  error
	library  map[string]string
)

// loadAll parses every embedded prompt file into a flat "file/key" map.
func loadAll() {
	library = make(map[string]string)
	loadErr = fs.WalkDir(promptFiles, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := promptFiles.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", path, err)
		}
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		name := strings.TrimSuffix(path, ".json")
		for key, text := range entries {
			library[name+"/"+key] = text
		}
		return nil
	})
}

// Get retrieves a prompt by "file/key" reference, e.g. "research/concept".
func Get(ref string) (string, error) {
	loadOnce.Do(loadAll)
	if loadErr != nil {
		return "", loadErr
	}
	prompt, ok := library[ref]
	if !ok {
		return "", fmt.Errorf("prompt %q not found", ref)
	}
	return prompt, nil
}

// MustGet retrieves a prompt, panicking if it does not exist. Use for prompts
// required at initialization time.
func MustGet(ref string) string {
	prompt, err := Get(ref)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{.%s}}", key), value)
	}
	return result
}

// LanguageInstruction returns the instruction prepended to generation prompts
// for non-English output. English needs no instruction.
func LanguageInstruction(lang string) string {
	if lang == "he" {
		return MustGet("common/hebrew_instruction")
	}
	return ""
}
