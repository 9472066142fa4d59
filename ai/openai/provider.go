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
	"log/slog"

	"github.com/poiesic/graphrag/ai"
)

// Provider implements ai.AIProvider over OpenAI-compatible services.
// Classification and extraction share one chat client on ClassifierHost;
// embeddings use their own client on EmbeddingHost.
type Provider struct {
	embedder   *Embedder
	classifier *QueryClassifier
	extractor  *EntityExtractor
	logger     *slog.Logger
}

// NewProvider validates config and builds every capability from it.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"classifier_host", config.ClassifierHost,
		"classifier_model", config.ClassifierModel)

	return &Provider{
		embedder:   embedder,
		classifier: newQueryClassifier(config, chat),
		extractor:  newEntityExtractor(config, chat),
		logger:     logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) QueryClassifier() ai.QueryClassifier {
	return p.classifier
}

func (p *Provider) EntityExtractor() ai.EntityExtractor {
	return p.extractor
}

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
