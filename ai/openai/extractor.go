// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// KnowledgeExtractor implements ai.KnowledgeExtractor using OpenAI-compatible chat APIs.
type KnowledgeExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// item is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type item struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Methods       []item `json:"methods"`
	Datasets      []item `json:"datasets"`
	Baselines     []item `json:"baselines"`
	Metrics       []item `json:"metrics"`
	Results       []item `json:"results"`
	Contributions []item `json:"contributions"`
	Limitations   []item `json:"limitations"`
}

// newKnowledgeExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newKnowledgeExtractor(config *ai.Config) (*KnowledgeExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &KnowledgeExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewKnowledgeExtractor creates a new knowledge extractor using the provided configuration.
//
// Returns ai.KnowledgeExtractor interface to enforce abstraction.
func NewKnowledgeExtractor(config *ai.Config) (ai.KnowledgeExtractor, error) {
	return newKnowledgeExtractor(config)
}

// ExtractKnowledge extracts typed knowledge items from section text using an LLM.
func (e *KnowledgeExtractor) ExtractKnowledge(ctx context.Context, text string) ([]ai.KnowledgeItem, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(extractionSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.KnowledgeItem{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	items := make([]ai.KnowledgeItem, 0,
		len(result.Methods)+len(result.Datasets)+len(result.Baselines)+
			len(result.Metrics)+len(result.Results)+len(result.Contributions)+
			len(result.Limitations))

	items = appendItems(items, core.ExtractionMethod, result.Methods)
	items = appendItems(items, core.ExtractionDataset, result.Datasets)
	items = appendItems(items, core.ExtractionBaseline, result.Baselines)
	items = appendItems(items, core.ExtractionMetric, result.Metrics)
	items = appendItems(items, core.ExtractionResult, result.Results)
	items = appendItems(items, core.ExtractionContribution, result.Contributions)
	items = appendItems(items, core.ExtractionLimitation, result.Limitations)

	e.logger.Debug("extracted knowledge items", "count", len(items))
	return items, nil
}

// appendItems converts one typed array from the model response, dropping
// items with empty names.
func appendItems(dst []ai.KnowledgeItem, t core.ExtractionType, src []item) []ai.KnowledgeItem {
	for _, it := range src {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		dst = append(dst, ai.KnowledgeItem{
			Type:   t,
			Name:   name,
			Detail: strings.TrimSpace(it.Detail),
		})
	}
	return dst
}
