package offlineworker

import (
	"net/http"
	"testing"
)

func classifyRequest(t *testing.T, method, target string, headers map[string]string) Outcome {
	t.Helper()
	cfg := testConfig(t, "https://portal.example")
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return NewClassifier(cfg).Classify(req)
}

func TestClassify(t *testing.T) {
	htmlAccept := map[string]string{"Accept": "text/html,application/xhtml+xml"}
	cases := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		want    Outcome
	}{
		{"navigation by accept header", "GET", "/portal", htmlAccept, Navigation},
		{"navigation by fetch mode", "GET", "/", map[string]string{"Sec-Fetch-Mode": "navigate"}, Navigation},
		{"static asset by extension", "GET", "/app/main.js", nil, StaticAsset},
		{"static asset extension case insensitive", "GET", "/img/logo.PNG", nil, StaticAsset},
		{"static asset by cdn host", "GET", "https://static.wixstatic.com/media/img", nil, StaticAsset},
		{"excluded payment host", "GET", "https://js.stripe.com/v3/stripe.js", nil, Excluded},
		{"excluded webhook path", "GET", "/webhook/cliniko", nil, Excluded},
		{"excluded auth host", "GET", "https://login.auth0.com/authorize", nil, Excluded},
		{"excluded booking api host", "GET", "https://primary-production.up.railway.app/availability", nil, Excluded},
		{"mutating request", "POST", "/api/book", nil, Excluded},
		{"plain data request", "GET", "/api/services.json", nil, Default},
		{"no extension no hint", "GET", "/api/slots", nil, Default},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRequest(t, tc.method, tc.target, tc.headers)
			if got != tc.want {
				t.Fatalf("Classified as %s, expected %s", got, tc.want)
			}
		})
	}
}

// Rule order: exclusion checks beat navigation, which beats asset
// checks.
func TestClassifyTieBreaks(t *testing.T) {
	// an asset-looking URL on an excluded host stays excluded
	if got := classifyRequest(t, "GET", "https://js.stripe.com/v3/stripe.js", nil); got != Excluded {
		t.Fatalf("Classified as %s, expected %s", got, Excluded)
	}
	// googleapis.com is excluded even though fonts.googleapis.com is
	// on the CDN allowlist: exclusion wins
	if got := classifyRequest(t, "GET", "https://fonts.googleapis.com/css2?family=Cormorant", nil); got != Excluded {
		t.Fatalf("Classified as %s, expected %s", got, Excluded)
	}
	// a navigation to a webhook path is excluded, not a navigation
	if got := classifyRequest(t, "GET", "/webhook/confirm", map[string]string{"Accept": "text/html"}); got != Excluded {
		t.Fatalf("Classified as %s, expected %s", got, Excluded)
	}
	// an html-accepting request for a js file is a navigation first
	if got := classifyRequest(t, "GET", "/bundle.js", map[string]string{"Accept": "text/html"}); got != Navigation {
		t.Fatalf("Classified as %s, expected %s", got, Navigation)
	}
}
