// Package chatnode integrates ChatNode.ai bots as a forge block.
package chatnode

import (
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/convoflow/convoflow/forge"
)

const (
	BlockID = "chatnode"

	defaultBaseURL = "https://api.chatnode.ai/v1/bots/"
)

// Response mapping items exposed by the Send Message action.
const (
	ItemMessage  = "Message"
	ItemThreadID = "Thread ID"
)

type SendMessageOptions struct {
	BotID           string                  `json:"botId" validate:"required"`
	ThreadID        string                  `json:"threadId"`
	Message         string                  `json:"message"`
	ResponseMapping []forge.ResponseMapping `json:"responseMapping"`
}

type sendMessageResponse struct {
	Message       string `json:"message"`
	ChatSessionID string `json:"chat_session_id"`
}

// Block returns the ChatNode block with its default HTTP client.
func Block() forge.Block {
	return New(resty.New(), defaultBaseURL)
}

// New builds the block against a caller-supplied client and base URL so
// tests can point it at a local server.
func New(client *resty.Client, baseURL string) forge.Block {
	return forge.Block{
		ID: BlockID,
		Actions: []forge.Action{
			{
				Name:           "Send Message",
				SetVariableIDs: forge.MappedVariableIDs,
				Server: func(run forge.ServerRun) error {
					return sendMessage(client, baseURL, run)
				},
			},
		},
	}
}

func sendMessage(client *resty.Client, baseURL string, run forge.ServerRun) error {
	options, err := forge.DecodeOptions[SendMessageOptions](run.Options)
	if err != nil {
		return err
	}

	body := map[string]any{"message": options.Message}
	if options.ThreadID != "" {
		body["chat_session_id"] = options.ThreadID
	}

	// The upstream body is JSON regardless of what the Content-Type header
	// says; without forcing it a mislabeled 200 would leave the result
	// zero-valued and the mapping would write empty values.
	var response sendMessageResponse
	res, err := client.R().
		SetContext(run.Ctx).
		SetAuthToken(run.Credentials["apiKey"]).
		SetBody(body).
		SetResult(&response).
		ForceContentType("application/json").
		Post(baseURL + options.BotID)
	if err != nil {
		return fmt.Errorf("ChatNode request failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("ChatNode API: response %s", res.Status())
	}

	for _, mapping := range options.ResponseMapping {
		if mapping.VariableID == "" || mapping.Item == "" {
			continue
		}
		switch mapping.Item {
		case ItemMessage:
			run.Variables.Set(mapping.VariableID, response.Message)
		case ItemThreadID:
			run.Variables.Set(mapping.VariableID, response.ChatSessionID)
		}
	}
	return nil
}
