package models

// ActionKind is the fixed vocabulary of actions the intent dispatcher can
// select, plus the job-only kinds used during scrape reconciliation.
type ActionKind string

const (
	// Dispatcher-selectable actions
	ActionNone              ActionKind = "none"
	ActionMoreInfo          ActionKind = "more_info"
	ActionGetProductDetails ActionKind = "get_product_details"
	ActionFindSimilar       ActionKind = "find_similar"
	ActionCompareProducts   ActionKind = "compare_products"
	ActionSearch            ActionKind = "search"
	ActionSearchAmazon      ActionKind = "search_amazon"

	// Job-only actions (never produced by the dispatcher)
	ActionLink                   ActionKind = "link"
	ActionBasicGetProductDetails ActionKind = "basic_get_product_details"
)

// ProductReference identifies a product either by its external id or, when
// the user only named it, by free text to resolve via embedding search.
type ProductReference struct {
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

// ActionDescriptor is the structured intent produced by the dispatcher from
// free text. It is ephemeral and never persisted.
type ActionDescriptor struct {
	Action         ActionKind         `json:"action"`
	Response       string             `json:"response,omitempty"`
	UserQuery      string             `json:"user_query,omitempty"`
	EmbeddingQuery string             `json:"embedding_query,omitempty"`
	ProductID      string             `json:"product_id,omitempty"`
	ProductName    string             `json:"product_name,omitempty"`
	Products       []ProductReference `json:"products,omitempty"`
}
