// Package dictionary loads the static issue/suggestion code dictionary
// baked into the binary at compile time, removing any filesystem
// dependency at run time. Grounded on
// theRebelliousNerd-codenerd/internal/prompt/embedded.go's
// go:embed-plus-yaml.v3 corpus loader.
package dictionary

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/valknut/internal/types"
)

//go:embed dictionary.yaml
var embedded embed.FS

type rawMeta struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

type rawDictionary struct {
	Issues      map[string]rawMeta `yaml:"issues"`
	Suggestions map[string]rawMeta `yaml:"suggestions"`
}

var loaded types.CodeDictionary

func init() {
	var err error
	loaded, err = load()
	if err != nil {
		panic(fmt.Sprintf("dictionary: failed to load embedded dictionary.yaml: %v", err))
	}
}

func load() (types.CodeDictionary, error) {
	data, err := embedded.ReadFile("dictionary.yaml")
	if err != nil {
		return types.CodeDictionary{}, err
	}
	var raw rawDictionary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return types.CodeDictionary{}, fmt.Errorf("dictionary: parsing embedded yaml: %w", err)
	}

	dict := types.CodeDictionary{
		Issues:      make(map[string]types.DictionaryMeta, len(raw.Issues)),
		Suggestions: make(map[string]types.DictionaryMeta, len(raw.Suggestions)),
	}
	for code, m := range raw.Issues {
		dict.Issues[code] = types.DictionaryMeta{Code: code, Title: m.Title, Summary: m.Summary}
	}
	for code, m := range raw.Suggestions {
		dict.Suggestions[code] = types.DictionaryMeta{Code: code, Title: m.Title, Summary: m.Summary}
	}
	return dict, nil
}

// Default returns the embedded code dictionary. The returned value is
// shared and must not be mutated by callers.
func Default() types.CodeDictionary {
	return loaded
}
