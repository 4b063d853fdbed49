// -----------------------------------------------------------------------
// Search Service - Vector similarity search with LLM relevance validation
// -----------------------------------------------------------------------

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/ternarybob/merx/internal/services/llm"
)

// Service runs the two-stage search: vector nearest-neighbor candidates,
// then an LLM pass that filters out candidates not actually relevant to the
// request. Implements interfaces.SearchService.
type Service struct {
	storage    interfaces.ProductStorage
	completion interfaces.CompletionService
	logger     arbor.ILogger
}

// NewService creates a new search service
func NewService(storage interfaces.ProductStorage, completion interfaces.CompletionService, logger arbor.ILogger) *Service {
	return &Service{
		storage:    storage,
		completion: completion,
		logger:     logger,
	}
}

// validationResponse is the shape the relevance validator must produce
type validationResponse struct {
	Products []struct {
		ProductID string `json:"product_id"`
	} `json:"products"`
	Message string `json:"message"`
}

// FindSimilar returns up to limit catalog products relevant to the query.
// Vector search supplies candidates; the model removes the irrelevant ones.
// Candidate order from vector search is preserved in the result. A
// validation pass that cannot be parsed gets one retry, then the result is
// treated as empty rather than failing the search.
func (s *Service) FindSimilar(ctx context.Context, conversation *models.Conversation, userQuery string, embedding []float32, limit int) (*interfaces.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	matches, err := s.storage.FindNearest(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(matches) == 0 {
		return &interfaces.SearchResult{}, nil
	}

	validated, message := s.validate(ctx, conversation, userQuery, matches)

	// Keep vector-search order, filtered to the surviving ids
	keep := make(map[string]bool, len(validated))
	for _, id := range validated {
		keep[id] = true
	}

	var products []*models.Product
	for _, match := range matches {
		if keep[match.Product.ProductID] {
			products = append(products, match.Product)
		}
	}

	return &interfaces.SearchResult{
		Products: products,
		Message:  message,
	}, nil
}

// validate asks the model which candidates genuinely satisfy the request.
// Returns the surviving product ids and an optional message for the user.
// An unparseable response is retried once; a second failure yields no
// survivors.
func (s *Service) validate(ctx context.Context, conversation *models.Conversation, userQuery string, matches []*models.ProductMatch) ([]string, string) {
	prompt := buildValidationPrompt(conversation, userQuery, matches)

	messages := []interfaces.Message{
		{Role: "system", Content: validationSystemPrompt},
		{Role: "user", Content: prompt},
	}

	for attempt := 1; attempt <= 2; attempt++ {
		response, err := s.completion.Complete(ctx, messages, "")
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Search validation call failed")
			continue
		}

		var parsed validationResponse
		if err := llm.Decode(response, &parsed); err != nil {
			s.logger.Warn().
				Int("attempt", attempt).
				Msg("Search validation returned unparseable output")
			messages = append(messages,
				interfaces.Message{Role: "assistant", Content: response},
				interfaces.Message{Role: "user", Content: "Respond with ONLY the JSON object, no prose."},
			)
			continue
		}

		ids := make([]string, 0, len(parsed.Products))
		for _, p := range parsed.Products {
			if p.ProductID != "" {
				ids = append(ids, p.ProductID)
			}
		}
		return ids, strings.TrimSpace(parsed.Message)
	}

	s.logger.Warn().Str("user_query", userQuery).Msg("Search validation failed, returning no matches")
	return nil, ""
}

const validationSystemPrompt = `You validate product search results for a shopping assistant.
Given the user's request and a list of candidate products, decide which candidates actually satisfy the request.
Respond with a single JSON object:
{"products": [{"product_id": "..."}], "message": "<one short sentence for the user, optional>"}
Include only genuinely relevant candidates; an empty products list is a valid answer. Output only the JSON object.`

// buildValidationPrompt renders the request and candidates for the model.
// Embeddings, raw reviews and Q&A are excluded from the candidate listing.
func buildValidationPrompt(conversation *models.Conversation, userQuery string, matches []*models.ProductMatch) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User request: %s\n\n", userQuery)

	if conversation != nil {
		recent := conversation.Recent(4)
		if len(recent) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, msg := range recent {
				fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("Candidates:\n")
	for _, match := range matches {
		candidate := map[string]interface{}{
			"product_id":  match.Product.ProductID,
			"title":       match.Product.Title,
			"description": match.Product.Description,
			"price":       match.Product.Price,
			"rating":      match.Product.Rating,
			"features":    match.Product.Features,
			"specs":       match.Product.Specs,
		}
		encoded, err := json.Marshal(candidate)
		if err != nil {
			continue
		}
		b.Write(encoded)
		b.WriteByte('\n')
	}

	return b.String()
}
