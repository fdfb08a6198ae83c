package schema

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadFile reads a JSON schema file mapping collection names to field
// declaration lists:
//
//	{
//	  "orders": [
//	    {"path": "customer.name", "type": "text", "alias": "customer"},
//	    {"path": "total", "type": "number"}
//	  ]
//	}
//
// A missing file is not an error; every collection then runs
// schemaless. A present but invalid file is.
func LoadFile(path string) (map[string]*FieldSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*FieldSchema{}, nil
		}
		return nil, fmt.Errorf("reading schema file %s: %w", path, err)
	}

	var raw map[string][]FieldDeclaration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}

	schemas := make(map[string]*FieldSchema, len(raw))
	for collection, decls := range raw {
		fs, err := New(decls...)
		if err != nil {
			return nil, fmt.Errorf("schema for collection %s: %w", collection, err)
		}
		schemas[collection] = fs
	}
	return schemas, nil
}
