package sources

import (
	"encoding/json"
	"fmt"
	"os"
)

// sourceFileEntry is the JSON shape of one source in an override file.
type sourceFileEntry struct {
	Name      string  `json:"name"`
	Layer     int     `json:"layer"`
	Tier      int     `json:"tier"`
	Quality   float64 `json:"quality"`
	Kind      string  `json:"kind"`
	FeedURL   string  `json:"feedUrl"`
	SearchURL string  `json:"searchUrl"`
}

// LoadRegistry reads a source-list override file (a JSON array of sources)
// and returns a registry over it.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source list %s: %w", path, err)
	}

	var entries []sourceFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse source list %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("source list %s is empty", path)
	}

	list := make([]Source, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Layer < 1 || e.Layer > 3 {
			return nil, fmt.Errorf("source list %s: entry %q needs a name and a layer in 1..3", path, e.Name)
		}
		if e.Quality < 0 || e.Quality > 1 {
			return nil, fmt.Errorf("source list %s: entry %q quality must be in [0,1]", path, e.Name)
		}
		kind := Kind(e.Kind)
		if kind == "" {
			kind = KindRSS
		}
		if kind != KindRSS && kind != KindAPI {
			return nil, fmt.Errorf("source list %s: entry %q has unknown kind %q", path, e.Name, e.Kind)
		}
		tier := e.Tier
		if tier == 0 {
			tier = e.Layer
		}
		list = append(list, Source{
			Name:      e.Name,
			Layer:     e.Layer,
			Tier:      tier,
			Quality:   e.Quality,
			Kind:      kind,
			FeedURL:   e.FeedURL,
			SearchURL: e.SearchURL,
		})
	}

	return newRegistry(list), nil
}
