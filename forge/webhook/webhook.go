// Package webhook is the generic HTTP call block: arbitrary request, with
// response fields mapped into variables through JSONPath expressions.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
	"github.com/oliveagle/jsonpath"

	"github.com/convoflow/convoflow/forge"
)

const BlockID = "webhook"

// VariableMapping binds one JSONPath over the response body to a variable.
// Entries without a variable id are skipped; paths that do not match the
// response are skipped too, matching the engine's tolerant shape policy.
type VariableMapping struct {
	BodyPath   string `json:"bodyPath"`
	VariableID string `json:"variableId"`
}

type SendRequestOptions struct {
	URL                     string            `json:"url" validate:"required"`
	Method                  string            `json:"method" default:"POST" validate:"oneof=GET POST PUT PATCH DELETE"`
	Headers                 map[string]string `json:"headers"`
	Body                    string            `json:"body"`
	ResponseVariableMapping []VariableMapping `json:"responseVariableMapping"`
}

// Block returns the webhook block with its default HTTP client.
func Block() forge.Block {
	return New(resty.New())
}

func New(client *resty.Client) forge.Block {
	return forge.Block{
		ID: BlockID,
		Actions: []forge.Action{
			{
				Name: "Send Request",
				SetVariableIDs: func(options map[string]any) []string {
					raw, ok := options["responseVariableMapping"].([]any)
					if !ok {
						return nil
					}
					var ids []string
					for _, entry := range raw {
						m, ok := entry.(map[string]any)
						if !ok {
							continue
						}
						if id, ok := m["variableId"].(string); ok && id != "" {
							ids = append(ids, id)
						}
					}
					return ids
				},
				Server: func(run forge.ServerRun) error {
					return sendRequest(client, run)
				},
			},
			{
				Name: "Stream Request",
				Stream: func(run forge.StreamRun) (io.ReadCloser, error) {
					return streamRequest(client, run)
				},
			},
		},
	}
}

func sendRequest(client *resty.Client, run forge.ServerRun) error {
	options, err := forge.DecodeOptions[SendRequestOptions](run.Options)
	if err != nil {
		return err
	}

	req := client.R().
		SetContext(run.Ctx).
		SetHeaders(options.Headers)
	if token := run.Credentials["apiKey"]; token != "" {
		req.SetAuthToken(token)
	}
	if options.Body != "" {
		req.SetBody(requestBody(options.Body))
	}

	res, err := req.Execute(options.Method, options.URL)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook: response %s", res.Status())
	}

	applyResponseMapping(run, options.ResponseVariableMapping, res.Body())
	return nil
}

// requestBody normalizes the body template. A template that parses as JSON
// is sent as the parsed document so numbers and booleans keep their types;
// anything else is sent verbatim.
func requestBody(body string) any {
	container, err := gabs.ParseJSON([]byte(body))
	if err != nil {
		return body
	}
	return container.Data()
}

// applyResponseMapping writes mapped response fields into variables. The
// whole response was received before any write happens; a mapping either
// applies completely or not at all.
func applyResponseMapping(run forge.ServerRun, mappings []VariableMapping, body []byte) {
	if len(mappings) == 0 {
		return
	}
	var document any
	if err := json.Unmarshal(body, &document); err != nil {
		return
	}
	for _, mapping := range mappings {
		if mapping.VariableID == "" || mapping.BodyPath == "" {
			continue
		}
		path := mapping.BodyPath
		if !strings.HasPrefix(path, "$") {
			path = "$." + path
		}
		value, err := jsonpath.JsonPathLookup(document, path)
		if err != nil {
			continue
		}
		run.Variables.Set(mapping.VariableID, value)
	}
}

func streamRequest(client *resty.Client, run forge.StreamRun) (io.ReadCloser, error) {
	options, err := forge.DecodeOptions[SendRequestOptions](run.Options)
	if err != nil {
		return nil, err
	}

	req := client.R().
		SetContext(run.Ctx).
		SetHeaders(options.Headers).
		SetDoNotParseResponse(true)
	if token := run.Credentials["apiKey"]; token != "" {
		req.SetAuthToken(token)
	}
	if options.Body != "" {
		req.SetBody(requestBody(options.Body))
	}

	res, err := req.Execute(options.Method, options.URL)
	if err != nil {
		return nil, fmt.Errorf("webhook stream failed: %w", err)
	}
	if res.StatusCode() >= 400 {
		raw := res.RawBody()
		message, _ := io.ReadAll(io.LimitReader(raw, 4096))
		raw.Close()
		return nil, &forge.ProviderError{
			Name:    "WebhookError",
			Status:  res.StatusCode(),
			Message: strings.TrimSpace(string(message)),
		}
	}
	return res.RawBody(), nil
}
