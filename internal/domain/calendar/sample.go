package calendar

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed sample_events.yaml
var defaultSample []byte

type sampleFile struct {
	Events []Event `yaml:"events"`
}

// LoadSample decodes a YAML sample-data document and validates every event.
func LoadSample(r io.Reader) ([]Event, error) {
	var f sampleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode sample events: %w", err)
	}
	for i := range f.Events {
		e := &f.Events[i]
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("sample event %d (%s): %w", i, e.ID, err)
		}
		e.Source = SourceUser
	}
	return f.Events, nil
}

// LoadSampleFile reads sample events from path, or the built-in set when
// path is empty.
func LoadSampleFile(path string) ([]Event, error) {
	if path == "" {
		return DefaultSample()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample events: %w", err)
	}
	defer f.Close()
	return LoadSample(f)
}

// DefaultSample returns the built-in sample events.
func DefaultSample() ([]Event, error) {
	return LoadSample(bytes.NewReader(defaultSample))
}
