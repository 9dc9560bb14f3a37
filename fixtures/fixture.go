package fixtures

import (
	_ "embed"
	"io"
	"net/http"
)

const BaseURL = "http://localhost:8000/api/v1/"
const SnapshotAPIKey = "test_key"

const ShopProjectID = "proj-shop"
const BlogProjectID = "proj-blog"

// Page views used throughout the tests.
const (
	CheckoutURL     = "https://www.example-shop.com/checkout"
	CheckoutDoneURL = "https://example-shop.com/checkout/DONE"
	CampaignURL     = "https://example-shop.com/campaign/summer"
	BlogURL         = "https://blog.example.org/posts/1"

	IPhoneUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	IPadUserAgent    = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// SnapshotJSON is the content of snapshot.json.
//
//go:embed snapshot.json
var SnapshotJSON string

// SnapshotYAML is the content of snapshot.yaml.
//
//go:embed snapshot.yaml
var SnapshotYAML string

// SnapshotHandler serves SnapshotJSON the way the API does.
func SnapshotHandler(rw http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/api/v1/snapshot/" {
		panic("Wrong path")
	}
	if req.Header.Get("X-Api-Key") != SnapshotAPIKey {
		panic("Wrong API key")
	}

	rw.Header().Set("Content-Type", "application/json")

	rw.WriteHeader(http.StatusOK)
	_, err := io.WriteString(rw, SnapshotJSON)
	if err != nil {
		panic(err)
	}
}
