// -----------------------------------------------------------------------
// Job Reconcilers - Background processing of completed scrape results
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/ternarybob/merx/internal/services/llm"
)

// reconcileProductDetails handles link and get_product_details results: a
// single product page scrape that becomes one catalog entry and one card in
// the user's conversation.
func (s *Service) reconcileProductDetails(ctx context.Context, job *models.Job, successMsg string) {
	defer s.finish(ctx, job)

	if len(job.Result) == 0 {
		s.logger.Warn().Str("job_id", job.ID).Str("error", job.Error).Msg("Scrape returned no payloads")
		s.deliver(ctx, job.UserID, s.assistantReply(msgDetailsFailed))
		return
	}

	product, err := s.processPayload(ctx, job, &job.Result[0])
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to process product payload")
		s.deliver(ctx, job.UserID, s.assistantReply(msgDetailsFailed))
		return
	}

	reply := s.assistantReply(successMsg)
	reply.Products = []models.ProductCard{product.Card()}
	s.deliver(ctx, job.UserID, reply)
}

// reconcileSearch handles a scraped search results page. Candidates are
// validated for relevance against the original query, at most MaxValidated
// survivors are shown to the user, and a follow-up detail job is spawned to
// scrape the survivors' full product pages in the background.
func (s *Service) reconcileSearch(ctx context.Context, job *models.Job) {
	defer s.finish(ctx, job)

	if len(job.Result) == 0 {
		s.logger.Warn().Str("job_id", job.ID).Str("error", job.Error).Msg("Search scrape returned no payloads")
		s.deliver(ctx, job.UserID, s.assistantReply(msgSearchEmpty))
		return
	}

	validated, ok := s.validateSearchPayloads(ctx, job.UserQuery, job.Result)
	if !ok {
		s.deliver(ctx, job.UserID, s.assistantReply(msgSearchFailed))
		return
	}
	if len(validated) == 0 {
		s.deliver(ctx, job.UserID, s.assistantReply(msgSearchEmpty))
		return
	}
	if len(validated) > s.settings.MaxValidated {
		validated = validated[:s.settings.MaxValidated]
	}

	cards := make([]models.ProductCard, 0, len(validated))
	detailURLs := make([]string, 0, len(validated))
	for _, payload := range validated {
		card := models.ProductCard{
			ProductID:    payload.ProductID,
			Domain:       payload.Domain,
			Title:        payload.Title,
			Description:  payload.Description,
			Price:        payload.Price,
			ImageURL:     payload.ImageURL,
			Rating:       payload.Rating,
			AffiliateURL: common.AffiliateLinkFromProductID(payload.ProductID, s.settings.AffiliateTag),
		}
		cards = append(cards, card)
		detailURLs = append(detailURLs, common.ProductURL(payload.ProductID))
	}

	reply := s.assistantReply(searchReplyText(len(cards)))
	reply.Products = cards
	s.deliver(ctx, job.UserID, reply)

	// Full pages are scraped in the background so the cards shown above
	// gain specs, features and embeddings
	encoded, err := json.Marshal(detailURLs)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to encode detail URLs")
		return
	}
	if _, err := s.CreateScrapeJob(ctx, job.UserID, string(models.ActionBasicGetProductDetails), job.UserQuery, string(encoded)); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to spawn detail job")
	}
}

func searchReplyText(n int) string {
	if n == 1 {
		return "I found a product matching your search:"
	}
	return fmt.Sprintf("I found %d products matching your search:", n)
}

// reconcileBasicDetails handles the background detail scrape spawned after a
// search. Payloads are processed in bounded waves and a failing payload
// never blocks its siblings. No message is delivered; the user already has
// the cards.
func (s *Service) reconcileBasicDetails(ctx context.Context, job *models.Job) {
	defer s.finish(ctx, job)

	payloads := job.Result
	if len(payloads) == 0 {
		s.logger.Warn().Str("job_id", job.ID).Msg("Detail scrape returned no payloads")
		return
	}

	var mu sync.Mutex
	var processed, failed int

	for start := 0; start < len(payloads); start += s.settings.BatchSize {
		end := start + s.settings.BatchSize
		if end > len(payloads) {
			end = len(payloads)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			payload := &payloads[i]
			g.Go(func() error {
				// Failures are counted, not propagated, so one bad
				// payload cannot cancel the wave
				if _, err := s.processPayload(gctx, job, payload); err != nil {
					s.logger.Error().
						Err(err).
						Str("job_id", job.ID).
						Str("product_id", payload.ProductID).
						Msg("Failed to process payload")
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}
				mu.Lock()
				processed++
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("processed", processed).
		Int("failed", failed).
		Msg("Detail reconciliation finished")
}

// processPayload turns one scrape payload into a catalog product: affiliate
// link, idempotent create, business-rule validation with audit recording,
// then embedding enrichment. Validation failures are recorded but do not
// block the product.
func (s *Service) processPayload(ctx context.Context, job *models.Job, payload *models.ProductPayload) (*models.Product, error) {
	if payload.ProductID == "" {
		return nil, fmt.Errorf("payload has no product ID")
	}

	product := models.NewProductFromPayload(payload, job.UserID, job.ID)
	if payload.URL != "" {
		product.AffiliateURL = common.AffiliateLink(payload.URL, s.settings.AffiliateTag)
	} else {
		product.AffiliateURL = common.AffiliateLinkFromProductID(payload.ProductID, s.settings.AffiliateTag)
	}

	stored, err := s.products.Create(ctx, product)
	if err != nil {
		return nil, err
	}
	if stored != product {
		// Already in the catalog from an earlier scrape; keep the stored
		// version untouched
		return stored, nil
	}

	if violations := s.products.Validate(product); len(violations) > 0 {
		audit := models.NewProductError(product.ProductID, job.ID, job.UserID, violations)
		if err := s.products.RecordError(ctx, audit); err != nil {
			s.logger.Warn().Err(err).Str("product_id", product.ProductID).Msg("Failed to record validation errors")
		}
	}

	if err := s.products.Enrich(ctx, product); err != nil {
		// The product is usable without an embedding; it just won't be
		// found by similarity search until regenerated
		s.logger.Warn().Err(err).Str("product_id", product.ProductID).Msg("Failed to enrich product")
	}

	return product, nil
}

// searchValidationResponse is the shape the relevance validator must produce
type searchValidationResponse struct {
	Products []struct {
		ProductID string `json:"product_id"`
	} `json:"products"`
}

// validateSearchPayloads asks the model which scraped candidates genuinely
// match the user's query. Returns the survivors in candidate order. The
// second return is false when validation never produced a parseable answer.
func (s *Service) validateSearchPayloads(ctx context.Context, userQuery string, payloads []models.ProductPayload) ([]models.ProductPayload, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n\nCandidates:\n", userQuery)
	for _, p := range payloads {
		candidate := map[string]interface{}{
			"product_id":  p.ProductID,
			"title":       p.Title,
			"description": p.Description,
			"price":       p.Price,
			"rating":      p.Rating,
		}
		encoded, err := json.Marshal(candidate)
		if err != nil {
			continue
		}
		b.Write(encoded)
		b.WriteByte('\n')
	}

	messages := []interfaces.Message{
		{Role: "system", Content: searchValidationPrompt},
		{Role: "user", Content: b.String()},
	}

	for attempt := 1; attempt <= 2; attempt++ {
		response, err := s.completion.Complete(ctx, messages, "")
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Search validation call failed")
			continue
		}

		var parsed searchValidationResponse
		if err := llm.Decode(response, &parsed); err != nil {
			s.logger.Warn().Int("attempt", attempt).Msg("Search validation returned unparseable output")
			messages = append(messages,
				interfaces.Message{Role: "assistant", Content: response},
				interfaces.Message{Role: "user", Content: "Respond with ONLY the JSON object, no prose."},
			)
			continue
		}

		keep := make(map[string]bool, len(parsed.Products))
		for _, p := range parsed.Products {
			keep[p.ProductID] = true
		}

		var validated []models.ProductPayload
		for _, p := range payloads {
			if keep[p.ProductID] {
				validated = append(validated, p)
			}
		}
		return validated, true
	}

	return nil, false
}

const searchValidationPrompt = `You validate scraped search results for a shopping assistant.
Given the user's request and a list of candidate products, decide which candidates actually satisfy the request.
Respond with a single JSON object: {"products": [{"product_id": "..."}]}
Include only genuinely relevant candidates; an empty list is a valid answer. Output only the JSON object.`
