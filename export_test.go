package abtest

// This file exports internal functions for testing purposes only.

// GetUserAgentForTest exposes the getUserAgent function for external tests.
func GetUserAgentForTest() string {
	return getUserAgent()
}

// PendingImpressionsForTest reports how many impressions c has not sent yet.
func PendingImpressionsForTest(c *Client) int {
	if c.impressions == nil {
		return 0
	}
	return c.impressions.Pending()
}
