// -----------------------------------------------------------------------
// Action Service - Executes classified intents into assistant replies
// -----------------------------------------------------------------------

package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// Settings carries the tunables the action service needs from configuration.
type Settings struct {
	SearchLimit     int // candidates shown for a catalog search
	SimilarityLimit int // candidates considered for find_similar
}

// Service executes classified actions. Each handler produces the assistant
// reply; conversation persistence is the caller's responsibility.
type Service struct {
	products   interfaces.ProductService
	search     interfaces.SearchService
	completion interfaces.CompletionService
	jobs       interfaces.JobService
	settings   Settings
	logger     arbor.ILogger
}

// NewService creates a new action service
func NewService(
	products interfaces.ProductService,
	search interfaces.SearchService,
	completion interfaces.CompletionService,
	jobs interfaces.JobService,
	settings Settings,
	logger arbor.ILogger,
) *Service {
	if settings.SearchLimit <= 0 {
		settings.SearchLimit = 5
	}
	if settings.SimilarityLimit <= 0 {
		settings.SimilarityLimit = 10
	}
	return &Service{
		products:   products,
		search:     search,
		completion: completion,
		jobs:       jobs,
		settings:   settings,
		logger:     logger,
	}
}

// Handle dispatches a classified action to its handler
func (s *Service) Handle(ctx context.Context, userID string, conversation *models.Conversation, descriptor *models.ActionDescriptor) (*models.Message, error) {
	if descriptor == nil {
		return nil, fmt.Errorf("action descriptor is required")
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("action", string(descriptor.Action)).
		Msg("Handling action")

	switch descriptor.Action {
	case models.ActionNone, models.ActionMoreInfo:
		return s.handleDirectResponse(descriptor), nil
	case models.ActionGetProductDetails:
		return s.handleProductDetails(ctx, descriptor)
	case models.ActionFindSimilar:
		return s.handleFindSimilar(ctx, conversation, descriptor)
	case models.ActionCompareProducts:
		return s.handleCompare(ctx, descriptor)
	case models.ActionSearch:
		return s.handleSearch(ctx, userID, conversation, descriptor)
	case models.ActionSearchAmazon:
		return s.handleSearchAmazon(ctx, userID, descriptor)
	default:
		s.logger.Warn().Str("action", string(descriptor.Action)).Msg("Unknown action")
		return s.reply(msgUnknownAction), nil
	}
}

// handleDirectResponse passes the classifier's conversational answer through
// verbatim. Used for chit-chat and follow-up questions the model can answer
// from history alone.
func (s *Service) handleDirectResponse(descriptor *models.ActionDescriptor) *models.Message {
	content := strings.TrimSpace(descriptor.Response)
	if content == "" {
		content = msgNoResponse
	}
	return s.reply(content)
}

// handleProductDetails answers a question about one known product
func (s *Service) handleProductDetails(ctx context.Context, descriptor *models.ActionDescriptor) (*models.Message, error) {
	product, err := s.products.Resolve(ctx, descriptor.ProductID, descriptor.ProductName)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return s.reply(msgProductNotFound), nil
	}

	answer, err := s.completion.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: productChatPrompt},
		{Role: "user", Content: fmt.Sprintf("Product:\n%s\nQuestion: %s", productContext(product), descriptor.UserQuery)},
	}, "")
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", product.ProductID).Msg("Product chat completion failed")
		return s.reply(msgDetailsFailed), nil
	}

	message := s.reply(strings.TrimSpace(answer))
	message.Products = []models.ProductCard{product.Card()}
	return message, nil
}

// handleFindSimilar runs a similarity search seeded by a known product's
// embedding, falling back to embedding the classifier's query text.
func (s *Service) handleFindSimilar(ctx context.Context, conversation *models.Conversation, descriptor *models.ActionDescriptor) (*models.Message, error) {
	var embedding []float32
	var source *models.Product

	product, err := s.products.Resolve(ctx, descriptor.ProductID, descriptor.ProductName)
	if err != nil {
		return nil, err
	}
	if product != nil && len(product.Embedding) > 0 {
		source = product
		embedding = product.Embedding
	} else if descriptor.EmbeddingQuery != "" {
		embedding, err = s.completion.Embed(ctx, descriptor.EmbeddingQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to embed similarity query: %w", err)
		}
	} else {
		return s.reply(msgProductNotFound), nil
	}

	result, err := s.search.FindSimilar(ctx, conversation, descriptor.UserQuery, embedding, s.settings.SimilarityLimit)
	if err != nil {
		return nil, err
	}

	cards := make([]models.ProductCard, 0, len(result.Products))
	for _, candidate := range result.Products {
		// The seed product is trivially most similar to itself
		if source != nil && candidate.ProductID == source.ProductID {
			continue
		}
		cards = append(cards, candidate.Card())
	}

	if len(cards) == 0 {
		return s.reply(msgNoSimilar), nil
	}

	content := strings.TrimSpace(result.Message)
	if content == "" {
		content = msgSimilarFound
	}
	message := s.reply(content)
	message.Products = cards
	return message, nil
}

// handleCompare compares exactly two referenced products
func (s *Service) handleCompare(ctx context.Context, descriptor *models.ActionDescriptor) (*models.Message, error) {
	if len(descriptor.Products) != 2 {
		return s.reply(msgCompareNeedsTwo), nil
	}

	resolved := make([]*models.Product, 0, 2)
	for _, ref := range descriptor.Products {
		product, err := s.products.Resolve(ctx, ref.ProductID, ref.ProductName)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return s.reply(msgCompareNotFound), nil
		}
		resolved = append(resolved, product)
	}

	comparison, err := s.completion.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: comparePrompt},
		{Role: "user", Content: fmt.Sprintf(
			"User request: %s\n\nProduct A:\n%s\nProduct B:\n%s",
			descriptor.UserQuery, productContext(resolved[0]), productContext(resolved[1]),
		)},
	}, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Comparison completion failed")
		return s.reply(msgDetailsFailed), nil
	}

	message := s.reply(strings.TrimSpace(comparison))
	message.RelatedProducts = []models.ProductIdentifier{
		{ProductID: resolved[0].ProductID},
		{ProductID: resolved[1].ProductID},
	}
	return message, nil
}

// handleSearch searches the local catalog first and falls back to an
// external marketplace scrape when nothing relevant is stored yet.
func (s *Service) handleSearch(ctx context.Context, userID string, conversation *models.Conversation, descriptor *models.ActionDescriptor) (*models.Message, error) {
	if descriptor.EmbeddingQuery == "" {
		return s.reply(msgSearchNeedsQuery), nil
	}

	embedding, err := s.completion.Embed(ctx, descriptor.EmbeddingQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	result, err := s.search.FindSimilar(ctx, conversation, descriptor.UserQuery, embedding, s.settings.SearchLimit)
	if err != nil {
		return nil, err
	}

	if len(result.Products) > 0 {
		cards := make([]models.ProductCard, 0, len(result.Products))
		for _, candidate := range result.Products {
			cards = append(cards, candidate.Card())
		}
		content := strings.TrimSpace(result.Message)
		if content == "" {
			content = msgSimilarFound
		}
		message := s.reply(content)
		message.Products = cards
		return message, nil
	}

	// Nothing stored matches; delegate to the marketplace scraper
	return s.handleSearchAmazon(ctx, userID, descriptor)
}

// handleSearchAmazon starts a marketplace search scrape and acknowledges
// the wait. Results arrive asynchronously through the job callback.
func (s *Service) handleSearchAmazon(ctx context.Context, userID string, descriptor *models.ActionDescriptor) (*models.Message, error) {
	query := descriptor.UserQuery
	if query == "" {
		query = descriptor.EmbeddingQuery
	}
	if strings.TrimSpace(query) == "" {
		return s.reply(msgSearchNeedsQuery), nil
	}

	searchURL := common.MarketplaceSearchURL(query)
	if _, err := s.jobs.CreateScrapeJob(ctx, userID, string(models.ActionSearchAmazon), query, searchURL); err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("Failed to create search job")
		return s.reply(msgSearchFailed), nil
	}

	return s.reply(msgSearchStarted), nil
}

// reply builds a plain assistant message
func (s *Service) reply(content string) *models.Message {
	return &models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleAssistant,
		Timestamp: time.Now(),
		Content:   content,
	}
}

// productContext flattens the fields a completion needs to talk about a
// product. Embeddings and raw review text stay out of the prompt.
func productContext(product *models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", product.Title)
	fmt.Fprintf(&b, "Price: %.2f\n", product.Price)
	fmt.Fprintf(&b, "Rating: %.1f\n", product.Rating)
	if product.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", product.Description)
	}
	if len(product.Features) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(product.Features, "; "))
	}
	for k, v := range product.Specs {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	if product.GeneratedReview != "" {
		fmt.Fprintf(&b, "Review: %s\n", product.GeneratedReview)
	}
	return b.String()
}

const productChatPrompt = `You are a shopping assistant answering a question about one specific product.
Answer from the product details provided. If the details do not cover the question, say so honestly.
Keep the answer short and conversational. Plain text only.`

const comparePrompt = `You are a shopping assistant comparing two products for a user.
Compare them on the aspects the user cares about, note meaningful differences in price, rating and features, and end with a one-sentence recommendation.
Keep it under 150 words. Plain text only.`

const (
	msgUnknownAction   = "I'm not sure how to help with that. You can ask about a product, search, or send a product link."
	msgNoResponse      = "Could you tell me a bit more about what you're looking for?"
	msgProductNotFound = "I couldn't find that product. You can add it by sending me its link."
	msgDetailsFailed   = "Error processing product details, please try again."
	msgNoSimilar       = "I couldn't find similar products in your catalog yet."
	msgSimilarFound    = "Here's what I found:"
	msgCompareNeedsTwo = "I need exactly two products to compare. Which two did you have in mind?"
	msgCompareNotFound = "I couldn't find one of those products. You can add it by sending me its link."
	msgSearchNeedsQuery = "What should I search for?"
	msgSearchFailed    = "I couldn't start that search right now, please try again."
	msgSearchStarted   = "I'm searching for matching products, this may take a moment."
)
