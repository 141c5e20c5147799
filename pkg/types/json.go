package types

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON serializes the result in its display shape. Identical results give
// identical bytes.
func (r *PipelineResult) JSON() ([]byte, error) {
	out := *r
	if out.Items == nil {
		out.Items = []ItemResult{}
	}
	return json.Marshal(out)
}

// IndentedJSON is JSON with two-space indentation
func (r *PipelineResult) IndentedJSON() ([]byte, error) {
	out := *r
	if out.Items == nil {
		out.Items = []ItemResult{}
	}
	return json.MarshalIndent(out, "", "  ")
}
