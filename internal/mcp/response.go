package mcp

import (
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// ui tags a payload with the widget a client should render it with.
type ui struct {
	Type string `json:"type"`
}

func jsonResult(data any) (*mcpsdk.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(content)},
		},
	}, nil
}

type errorBody struct {
	Error string   `json:"error"`
	Kind  ucp.Kind `json:"kind,omitempty"`
	Tool  string   `json:"tool"`
}

// errorResult reports a tool failure inside the result with IsError set, so
// the model sees the message and can recover.
func errorResult(tool string, err error) (*mcpsdk.CallToolResult, error) {
	res, mErr := jsonResult(errorBody{Error: err.Error(), Kind: ucp.KindOf(err), Tool: tool})
	if mErr != nil {
		return nil, mErr
	}
	res.IsError = true
	return res, nil
}
