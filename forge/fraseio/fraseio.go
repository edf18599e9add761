// Package fraseio integrates the Frase.io SERP processing API as a forge
// block.
package fraseio

import (
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/convoflow/convoflow/forge"
)

const (
	BlockID = "frase-io"

	defaultBaseURL = "https://api.frase.io/api/v1/process_serp"
)

// Response mapping items exposed by the Process SERP action.
const (
	ItemTitles           = "Titles"
	ItemURLs             = "URLs"
	ItemAvgWordCount     = "Average Word Count"
	ItemAvgHeaderCount   = "Average Header Count"
	ItemAvgExtLinksCount = "Average Ext.Links Count"
	ItemAvgScore         = "Average Score"
)

type ProcessSERPOptions struct {
	Query           string                  `json:"query" validate:"required"`
	UserURL         string                  `json:"user_url"`
	Count           string                  `json:"count" default:"20"`
	LanguageCode    string                  `json:"language_code" default:"en"`
	CountryCode     string                  `json:"country_code" default:"us"`
	ResponseMapping []forge.ResponseMapping `json:"responseMapping"`
}

type serpResponse struct {
	Items []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"items"`
	AggregateMetrics struct {
		AvgWordCount     float64 `json:"avg_word_count"`
		AvgHeaders       float64 `json:"avg_headers"`
		AvgExternalLinks float64 `json:"avg_external_links"`
		AvgScore         float64 `json:"avg_score"`
	} `json:"aggregate_metrics"`
}

// Block returns the Frase.io block with its default HTTP client.
func Block() forge.Block {
	return New(resty.New(), defaultBaseURL)
}

func New(client *resty.Client, baseURL string) forge.Block {
	return forge.Block{
		ID: BlockID,
		Actions: []forge.Action{
			{
				Name:           "Process SERP",
				SetVariableIDs: forge.MappedVariableIDs,
				Server: func(run forge.ServerRun) error {
					return processSERP(client, baseURL, run)
				},
			},
		},
	}
}

// processSERP keeps the provider's tolerant failure contract: non-200
// responses and transport errors are logged and set no variables, they are
// not propagated.
func processSERP(client *resty.Client, baseURL string, run forge.ServerRun) error {
	options, err := forge.DecodeOptions[ProcessSERPOptions](run.Options)
	if err != nil {
		return err
	}

	count, err := strconv.Atoi(options.Count)
	if err != nil {
		count = 20
	}
	request := map[string]any{
		"query":             options.Query,
		"lang":              options.LanguageCode,
		"country":           options.CountryCode,
		"count":             count,
		"include_full_text": false,
	}
	if options.UserURL != "" {
		request["user_url"] = options.UserURL
	}

	// Decode the body as JSON even when the response header is missing or
	// mislabeled; a zero-valued result must never reach the mapping.
	var response serpResponse
	res, err := client.R().
		SetContext(run.Ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("token", run.Credentials["apiKey"]).
		SetBody(request).
		SetResult(&response).
		ForceContentType("application/json").
		Post(baseURL)
	if err != nil {
		run.Logs.Error("Frase.io-processSERP: " + err.Error())
		return nil
	}
	if res.StatusCode() != 200 {
		run.Logs.Error("Frase.io-API: response " + strconv.Itoa(res.StatusCode()))
		return nil
	}

	for _, mapping := range options.ResponseMapping {
		if mapping.VariableID == "" {
			continue
		}
		item := mapping.Item
		if item == "" {
			item = ItemTitles
		}
		switch item {
		case ItemTitles:
			titles := make([]any, len(response.Items))
			for i, r := range response.Items {
				titles[i] = r.Title
			}
			run.Variables.Set(mapping.VariableID, titles)
		case ItemURLs:
			urls := make([]any, len(response.Items))
			for i, r := range response.Items {
				urls[i] = r.URL
			}
			run.Variables.Set(mapping.VariableID, urls)
		case ItemAvgWordCount:
			run.Variables.Set(mapping.VariableID, response.AggregateMetrics.AvgWordCount)
		case ItemAvgHeaderCount:
			run.Variables.Set(mapping.VariableID, response.AggregateMetrics.AvgHeaders)
		case ItemAvgExtLinksCount:
			run.Variables.Set(mapping.VariableID, response.AggregateMetrics.AvgExternalLinks)
		case ItemAvgScore:
			run.Variables.Set(mapping.VariableID, response.AggregateMetrics.AvgScore)
		}
	}
	return nil
}
