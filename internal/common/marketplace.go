// -----------------------------------------------------------------------
// Marketplace URLs - ASIN extraction and affiliate link construction
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultAffiliateTag is used when no tag is configured
const DefaultAffiliateTag = "070777-20"

// asinPattern matches the product identifier segment of marketplace URLs,
// e.g. https://www.amazon.com/Some-Product/dp/B0ABCDEFGH/ref=...
var asinPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

// ExtractProductID extracts the 10-character product identifier (ASIN) from
// a marketplace URL. Returns an empty string when the URL carries none.
func ExtractProductID(rawURL string) string {
	// Links pasted from chat clients often arrive percent-encoded
	if decoded, err := url.QueryUnescape(rawURL); err == nil {
		rawURL = decoded
	}

	matches := asinPattern.FindStringSubmatch(rawURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// IsMarketplaceURL reports whether the URL points at a supported marketplace.
func IsMarketplaceURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "amazon.com" || strings.HasSuffix(host, ".amazon.com")
}

// AffiliateLink appends the affiliate tag to an existing product URL.
func AffiliateLink(rawURL, tag string) string {
	if tag == "" {
		tag = DefaultAffiliateTag
	}
	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%stag=%s", rawURL, separator, tag)
}

// AffiliateLinkFromProductID builds a canonical tagged product URL from a
// bare product identifier.
func AffiliateLinkFromProductID(productID, tag string) string {
	if tag == "" {
		tag = DefaultAffiliateTag
	}
	return fmt.Sprintf("https://www.amazon.com/dp/%s?tag=%s", productID, tag)
}

// ProductURL builds the canonical untagged product URL for a product ID.
func ProductURL(productID string) string {
	return "https://www.amazon.com/dp/" + productID
}

// MarketplaceSearchURL builds a marketplace search results URL for a query.
func MarketplaceSearchURL(query string) string {
	return "https://www.amazon.com/s?k=" + url.QueryEscape(query)
}
