// -----------------------------------------------------------------------
// Product Handler - Catalog CRUD, similarity search and regeneration
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
)

// ProductHandler exposes the product catalog over REST
type ProductHandler struct {
	storage    interfaces.ProductStorage
	errStorage interfaces.ProductErrorStorage
	products   interfaces.ProductService
	search     interfaces.SearchService
	completion interfaces.CompletionService
	logger     arbor.ILogger
}

// NewProductHandler creates a new product handler
func NewProductHandler(
	storage interfaces.ProductStorage,
	errStorage interfaces.ProductErrorStorage,
	products interfaces.ProductService,
	search interfaces.SearchService,
	completion interfaces.CompletionService,
	logger arbor.ILogger,
) *ProductHandler {
	return &ProductHandler{
		storage:    storage,
		errStorage: errStorage,
		products:   products,
		search:     search,
		completion: completion,
		logger:     logger,
	}
}

// ListHandler handles GET /api/products
func (h *ProductHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.ProductListOptions{
		JobID:  r.URL.Query().Get("job_id"),
		Domain: r.URL.Query().Get("domain"),
	}

	products, err := h.storage.ListProducts(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list products")
		WriteError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(products),
		"products": products,
	})
}

type productSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchHandler handles POST /api/products/embedding/search. The query is embedded and
// run through the same two-stage similarity pipeline chat uses.
func (h *ProductHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req productSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	embedding, err := h.completion.Embed(r.Context(), req.Query)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to embed search query")
		WriteError(w, http.StatusInternalServerError, "failed to embed query")
		return
	}

	result, err := h.search.FindSimilar(r.Context(), nil, req.Query, embedding, req.Limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Product search failed")
		WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(result.Products),
		"message":  result.Message,
		"products": result.Products,
	})
}

// ProductRoutes dispatches /api/products/{id} and its subresources:
//
//	GET    /api/products/{id}
//	DELETE /api/products/{id}
//	PUT    /api/products/{id}/regenerate
//	POST   /api/products/{id}/chat
//	GET    /api/products/{id}/errors
//	GET    /api/products/errors
func (h *ProductHandler) ProductRoutes(w http.ResponseWriter, r *http.Request) {
	id, sub := splitPathID(r.URL.Path, "/api/products")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "product ID is required")
		return
	}
	if id == "errors" && sub == "" {
		h.handleAllErrors(w, r)
		return
	}

	switch sub {
	case "":
		h.handleProduct(w, r, id)
	case "regenerate":
		h.handleRegenerate(w, r, id)
	case "chat":
		h.handleChat(w, r, id)
	case "errors":
		h.handleErrors(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProductHandler) handleProduct(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		product, err := h.storage.GetProduct(r.Context(), id)
		if err != nil {
			h.logger.Error().Err(err).Str("product_id", id).Msg("Failed to load product")
			WriteError(w, http.StatusInternalServerError, "failed to load product")
			return
		}
		if product == nil {
			WriteError(w, http.StatusNotFound, "product not found")
			return
		}
		WriteJSON(w, http.StatusOK, product)

	case http.MethodDelete:
		if err := h.storage.DeleteProduct(r.Context(), id); err != nil {
			h.logger.Error().Err(err).Str("product_id", id).Msg("Failed to delete product")
			WriteError(w, http.StatusInternalServerError, "failed to delete product")
			return
		}
		WriteSuccess(w, "Product deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ProductHandler) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	product, err := h.products.Regenerate(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("product_id", id).Msg("Failed to regenerate product")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, product)
}

type productChatRequest struct {
	Message string `json:"message"`
}

func (h *ProductHandler) handleChat(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req productChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	answer, err := h.products.Ask(r.Context(), id, req.Message)
	if err != nil {
		h.logger.Error().Err(err).Str("product_id", id).Msg("Product chat failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"product_id": id,
		"response":   answer,
	})
}

func (h *ProductHandler) handleAllErrors(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	errs, err := h.errStorage.ListProductErrors(r.Context(), r.URL.Query().Get("job_id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list product errors")
		WriteError(w, http.StatusInternalServerError, "failed to list product errors")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(errs),
		"errors": errs,
	})
}

func (h *ProductHandler) handleErrors(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	// The audit trail is keyed by job, so filter by product after the fetch
	all, err := h.errStorage.ListProductErrors(r.Context(), "")
	if err != nil {
		h.logger.Error().Err(err).Str("product_id", id).Msg("Failed to list product errors")
		WriteError(w, http.StatusInternalServerError, "failed to list product errors")
		return
	}

	filtered := all[:0:0]
	for _, e := range all {
		if e.ProductID == id {
			filtered = append(filtered, e)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(filtered),
		"errors": filtered,
	})
}
