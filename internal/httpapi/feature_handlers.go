package httpapi

import (
	"net/http"
	"strings"

	"metergate.org/internal/auth"
	"metergate.org/internal/authz"
	"metergate.org/internal/billing"
	"metergate.org/internal/ids"
)

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int64  `json:"max_tokens"`
}

type generateResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	Output     string `json:"output"`
	TokensUsed int64  `json:"tokens_used"`
}

type scrapeRequest struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

type scrapeResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	PagesFetched int    `json:"pages_fetched"`
	Status       string `json:"status"`
}

const defaultMaxTokens = 1024

// handleAIGenerate gates the inference endpoint. The business logic behind
// it is a placeholder; the access-control and metering path is the real
// subject.
func (a *API) handleAIGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.gate(Route{Permission: authz.PermAIAdvanced, Category: "ai", Operation: "generate"}, a.generate)(w, r)
}

func (a *API) generate(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, billing.Metrics{}, badRequest("model is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, billing.Metrics{}, badRequest("prompt is required")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ctx := r.Context()
	if err := a.resolver.AllowFeature(ctx, claims, authz.ModelFeature{Name: model}); err != nil {
		return nil, billing.Metrics{}, err
	}
	if err := a.resolver.AllowFeature(ctx, claims, authz.TokenBudgetFeature{Tokens: maxTokens}); err != nil {
		return nil, billing.Metrics{}, err
	}

	// Canned output; a model backend plugs in here.
	tokensUsed := int64(len(req.Prompt))/4 + 32
	if tokensUsed > maxTokens {
		tokensUsed = maxTokens
	}
	resp := generateResponse{
		ID:         ids.New(),
		Model:      model,
		Output:     "generated response for " + claims.Subject,
		TokensUsed: tokensUsed,
	}
	metrics := billing.Metrics{Requests: 1, Tokens: tokensUsed, ComputeUnits: tokensUsed / 256}
	return resp, metrics, nil
}

func (a *API) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.gate(Route{Permission: authz.PermScrapeBasic, Category: "scraping", Operation: "scrape"}, a.scrape)(w, r)
}

func (a *API) scrape(w http.ResponseWriter, r *http.Request, claims auth.Claims) (any, billing.Metrics, error) {
	var req scrapeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, billing.Metrics{}, badRequest(err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, billing.Metrics{}, badRequest("url is required")
	}
	depth := req.Depth
	if depth <= 0 {
		depth = 1
	}
	if depth > 3 {
		if err := a.resolver.RequirePermission(r.Context(), claims, authz.PermScrapeAdvanced); err != nil {
			return nil, billing.Metrics{}, err
		}
	}

	// Canned result; a fetcher plugs in here.
	resp := scrapeResponse{
		ID:           ids.New(),
		URL:          req.URL,
		PagesFetched: depth,
		Status:       "completed",
	}
	metrics := billing.Metrics{Requests: 1, ComputeUnits: int64(depth)}
	return resp, metrics, nil
}
