package util

import "github.com/mitchellh/mapstructure"

// Map2Struct decodes input (typically a map[string]string attribute
// bag off a GraphNodeDesc or FlowUnitDesc) into output, which must be
// a pointer to a struct or map.
func Map2Struct(input interface{}, output interface{}) error {
	return mapstructure.Decode(input, output)
}
