package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractProductID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "canonical product URL",
			url:      "https://www.amazon.com/dp/B0ABCDEFGH",
			expected: "B0ABCDEFGH",
		},
		{
			name:     "URL with title segment and ref suffix",
			url:      "https://www.amazon.com/Lenovo-IdeaPad-Laptop/dp/B0C1234567/ref=sr_1_3",
			expected: "B0C1234567",
		},
		{
			name:     "percent encoded URL",
			url:      "https%3A%2F%2Fwww.amazon.com%2Fdp%2FB09XYZ1234",
			expected: "B09XYZ1234",
		},
		{
			name:     "no product segment",
			url:      "https://www.amazon.com/gp/bestsellers",
			expected: "",
		},
		{
			name:     "lowercase id is rejected",
			url:      "https://www.amazon.com/dp/b0abcdefgh",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractProductID(tt.url))
		})
	}
}

func TestIsMarketplaceURL(t *testing.T) {
	assert.True(t, IsMarketplaceURL("https://www.amazon.com/dp/B0ABCDEFGH"))
	assert.True(t, IsMarketplaceURL("http://amazon.com/dp/B0ABCDEFGH"))
	assert.False(t, IsMarketplaceURL("https://example.com/dp/B0ABCDEFGH"))
	assert.False(t, IsMarketplaceURL("not a url"))
	assert.False(t, IsMarketplaceURL("ftp://amazon.com/dp/B0ABCDEFGH"))
}

func TestAffiliateLink(t *testing.T) {
	assert.Equal(t,
		"https://www.amazon.com/dp/B0ABCDEFGH?tag=070777-20",
		AffiliateLink("https://www.amazon.com/dp/B0ABCDEFGH", ""))

	assert.Equal(t,
		"https://www.amazon.com/dp/B0ABCDEFGH?ref=x&tag=mytag-21",
		AffiliateLink("https://www.amazon.com/dp/B0ABCDEFGH?ref=x", "mytag-21"))
}

func TestAffiliateLinkFromProductID(t *testing.T) {
	assert.Equal(t,
		"https://www.amazon.com/dp/B0ABCDEFGH?tag=070777-20",
		AffiliateLinkFromProductID("B0ABCDEFGH", ""))
}
