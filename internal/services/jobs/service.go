// -----------------------------------------------------------------------
// Job Service - Scrape job lifecycle and callback consumption
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// Settings carries the tunables the job service needs from configuration.
type Settings struct {
	AffiliateTag string // appended to generated product links
	BatchSize    int    // payloads reconciled concurrently
	MaxValidated int    // cards kept from a search result page
}

// Service owns the scrape job lifecycle: creation and submission, callback
// consumption with at-most-once semantics, and background reconciliation of
// results into the catalog and conversations.
type Service struct {
	storage       interfaces.JobStorage
	products      interfaces.ProductService
	conversations interfaces.ConversationService
	completion    interfaces.CompletionService
	scraper       interfaces.ScraperClient
	events        interfaces.EventService
	settings      Settings
	logger        arbor.ILogger
}

// NewService creates a new job service
func NewService(
	storage interfaces.JobStorage,
	products interfaces.ProductService,
	conversations interfaces.ConversationService,
	completion interfaces.CompletionService,
	scraperClient interfaces.ScraperClient,
	events interfaces.EventService,
	settings Settings,
	logger arbor.ILogger,
) *Service {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 2
	}
	if settings.MaxValidated <= 0 {
		settings.MaxValidated = 5
	}
	return &Service{
		storage:       storage,
		products:      products,
		conversations: conversations,
		completion:    completion,
		scraper:       scraperClient,
		events:        events,
		settings:      settings,
		logger:        logger,
	}
}

// CreateScrapeJob persists a pending job then submits it to the scraper.
// Submission failure rolls the job record back so the sweep never sees a
// job that was never scheduled.
func (s *Service) CreateScrapeJob(ctx context.Context, userID, action, userQuery, url string) (*models.Job, error) {
	if userID == "" || url == "" {
		return nil, fmt.Errorf("user ID and URL are required")
	}

	job := models.NewJob(userID, models.ActionKind(action), userQuery, url)
	if err := s.storage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	err := s.scraper.Schedule(ctx, &interfaces.ScheduleRequest{
		JobID: job.ID,
		URL:   url,
	})
	if err != nil {
		if delErr := s.storage.DeleteJob(ctx, job.ID); delErr != nil {
			s.logger.Warn().Err(delErr).Str("job_id", job.ID).Msg("Failed to roll back unscheduled job")
		}
		return nil, fmt.Errorf("failed to schedule scrape: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", userID).
		Str("action", action).
		Msg("Scrape job created")

	return job, nil
}

// HandleLink processes a product link pasted by the user. A known product
// is answered immediately with its card; otherwise a scrape job is started
// and the reply acknowledges the wait. Both sides of the exchange are
// persisted to the conversation.
func (s *Service) HandleLink(ctx context.Context, userID, rawURL string) (*models.Message, error) {
	reply, err := s.resolveLink(ctx, userID, rawURL)
	if err != nil {
		return nil, err
	}

	userMessage := &models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleUser,
		Timestamp: time.Now(),
		Content:   rawURL,
	}
	if _, err := s.conversations.AppendMessages(ctx, userID, userMessage, reply); err != nil {
		return nil, fmt.Errorf("failed to persist link exchange: %w", err)
	}

	return reply, nil
}

func (s *Service) resolveLink(ctx context.Context, userID, rawURL string) (*models.Message, error) {
	if !common.IsMarketplaceURL(rawURL) {
		return s.assistantReply(msgUnsupportedLink), nil
	}

	productID := common.ExtractProductID(rawURL)
	if productID == "" {
		return s.assistantReply(msgNoProductInLink), nil
	}

	existing, err := s.products.Resolve(ctx, productID, "")
	if err != nil {
		return nil, err
	}
	if existing != nil {
		reply := s.assistantReply(msgProductReady)
		reply.Products = []models.ProductCard{existing.Card()}
		return reply, nil
	}

	if _, err := s.CreateScrapeJob(ctx, userID, string(models.ActionLink), "", rawURL); err != nil {
		s.logger.Error().Err(err).Str("url", rawURL).Msg("Failed to create link job")
		return s.assistantReply(msgScrapeFailed), nil
	}

	return s.assistantReply(msgLinkAccepted), nil
}

// HandleCallback consumes a scrape result. The job must exist and be
// consumable exactly once: the record is marked completed and handed to a
// background reconciler, and a redelivery after reconciliation finds no job
// and is rejected.
func (s *Service) HandleCallback(ctx context.Context, update *models.JobUpdate) error {
	if update == nil || update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	job, err := s.storage.GetJob(ctx, update.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("unknown job: %s", update.JobID)
	}
	if job.Status == models.JobStatusCompleted {
		return fmt.Errorf("job already completed: %s", update.JobID)
	}

	// The callback carries no user identity; the job record is the
	// authority for whose conversation gets the results
	job.Status = models.JobStatusCompleted
	job.Result = update.Result
	job.Error = update.Error
	if update.EndTime != nil {
		job.EndTime = update.EndTime
	} else {
		now := time.Now()
		job.EndTime = &now
	}

	if err := s.storage.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("action", string(job.Action)).
		Int("payloads", len(job.Result)).
		Msg("Scrape callback accepted")

	common.SafeGo(s.logger, "reconcileJob:"+job.ID, func() {
		s.reconcile(context.Background(), job)
	})

	return nil
}

// reconcile dispatches a completed job to its action-specific reconciler.
// The job record is deleted once reconciliation finishes, completing the
// at-most-once contract.
func (s *Service) reconcile(ctx context.Context, job *models.Job) {
	switch job.Action {
	case models.ActionLink, "":
		s.reconcileProductDetails(ctx, job, msgProductReady)
	case models.ActionGetProductDetails:
		s.reconcileProductDetails(ctx, job, msgProductReady)
	case models.ActionSearch, models.ActionSearchAmazon:
		s.reconcileSearch(ctx, job)
	case models.ActionBasicGetProductDetails:
		s.reconcileBasicDetails(ctx, job)
	default:
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("action", string(job.Action)).
			Msg("Unknown job action, dropping result")
		s.finish(ctx, job)
	}
}

// finish removes the consumed job record
func (s *Service) finish(ctx context.Context, job *models.Job) {
	if err := s.storage.DeleteJob(ctx, job.ID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete consumed job")
	}
}

// deliver appends a message to the user's conversation and notifies push
// listeners through the event bus.
func (s *Service) deliver(ctx context.Context, userID string, message *models.Message) {
	if _, err := s.conversations.AppendMessages(ctx, userID, message); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to append job result message")
		return
	}

	if s.events != nil {
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventMessageAppended,
			Payload: &models.MessageAppended{
				UserID:  userID,
				Message: message,
			},
		})
	}
}

// assistantReply builds a plain assistant message
func (s *Service) assistantReply(content string) *models.Message {
	return &models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleAssistant,
		Timestamp: time.Now(),
		Content:   content,
	}
}

// Reply texts. Kept short and user-facing; reconciliation diagnostics go to
// the log and the product error audit trail instead.
const (
	msgProductReady    = "Here is the product you requested"
	msgLinkAccepted    = "I'm fetching the product details now. I'll post them here as soon as they're ready."
	msgUnsupportedLink = "I can only process Amazon product links at the moment."
	msgNoProductInLink = "I couldn't find a product in that link. Please send a direct product page link."
	msgScrapeFailed    = "I couldn't start processing that product right now, please try again."
	msgDetailsFailed   = "Error processing product details, please try again."
	msgSearchFailed    = "I couldn't complete that search, please try again."
	msgSearchEmpty     = "I couldn't find matching products for your search."
	msgSearchStarted   = "I'm searching for matching products, this may take a moment."
)
