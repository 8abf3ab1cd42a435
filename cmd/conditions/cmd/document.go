package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/solatis/conditions/internal/types"
	"gopkg.in/yaml.v3"
)

// readDocument reads a JSON or YAML document from path ("-" for stdin) into
// its generic form. JSON is parsed by yaml.v3 as a YAML subset.
func readDocument(stdin io.Reader, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, types.MaxDocumentSize+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > types.MaxDocumentSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, types.MaxDocumentSize)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// writeOutput renders v as indented JSON or YAML. YAML output goes through
// the JSON form first so json struct tags name the fields.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (expected json or yaml)", format)
	}
}
