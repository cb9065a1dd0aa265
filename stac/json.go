package stac

import "encoding/json"

// marshalWithExtra marshals v (a plain alias of one of Item/Collection/
// Catalog, so its MarshalJSON isn't recursively invoked), then folds extra
// back in without clobbering any field v itself set. Extension fields are
// preserved losslessly across load/save, per spec §6.
func marshalWithExtra(v interface{}, extra map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return m, nil
}

// unmarshalWithExtra unmarshals data into v (a plain alias, to avoid
// recursion into v's own UnmarshalJSON), then returns whatever top-level
// fields in data are not in known, to be stashed away as extension data.
func unmarshalWithExtra(data []byte, v interface{}, known map[string]bool) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range m {
		if !known[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

func marshalString(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
