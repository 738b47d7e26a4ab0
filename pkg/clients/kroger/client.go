package kroger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/krogetapp/kroget/internal/config"
	"github.com/krogetapp/kroget/internal/domain/models"
)

const (
	authorizePath = "/v1/connect/oauth2/authorize"
	tokenPath     = "/v1/connect/oauth2/token"
	productsPath  = "/v1/products"
	locationsPath = "/v1/locations"
	cartAddPath   = "/v1/cart/add"

	defaultTimeout = 15 * time.Second
	retryCount     = 3
	retryWait      = 500 * time.Millisecond
	retryMaxWait   = 8 * time.Second
)

// Client exposes the Kroger Public API operations used by the application.
type Client interface {
	ExchangeToken(ctx context.Context, grant TokenGrant) (*TokenResponse, error)
	SearchProducts(ctx context.Context, accessToken, term, locationID string, limit int) ([]models.ProductCandidate, error)
	GetProduct(ctx context.Context, accessToken, productID, locationID string) (*models.ProductCandidate, error)
	SearchLocations(ctx context.Context, accessToken, zipCode string, limit int) ([]Location, error)
	AddToCart(ctx context.Context, accessToken, productID string, quantity int, modality models.Modality) error
}

// GrantType enumerates the token exchange grants the endpoint accepts.
type GrantType string

const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// TokenGrant describes one form-encoded token exchange request.
type TokenGrant struct {
	Type         GrantType
	Scopes       []string
	Code         string
	RedirectURI  string
	RefreshToken string
}

func (g TokenGrant) form() map[string]string {
	form := map[string]string{"grant_type": string(g.Type)}
	if len(g.Scopes) > 0 {
		form["scope"] = strings.Join(g.Scopes, " ")
	}
	switch g.Type {
	case GrantAuthorizationCode:
		form["code"] = g.Code
		form["redirect_uri"] = g.RedirectURI
	case GrantRefreshToken:
		form["refresh_token"] = g.RefreshToken
	}
	return form
}

// TokenResponse mirrors the token endpoint's success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Location is a catalog store location entry.
type Location struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Address    struct {
		AddressLine1 string `json:"addressLine1"`
		City         string `json:"city"`
		State        string `json:"state"`
		ZipCode      string `json:"zipCode"`
	} `json:"address"`
}

// apiErrorPayload covers the error body shapes the API returns.
type apiErrorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Errors           *struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

func (p *apiErrorPayload) message() string {
	if p == nil {
		return ""
	}
	if p.Errors != nil && p.Errors.Reason != "" {
		return p.Errors.Reason
	}
	if p.ErrorDescription != "" {
		return p.ErrorDescription
	}
	return p.Error
}

// APIClient is a resty-backed implementation of Client. Token exchange and
// catalog reads retry transient failures with backoff; cart mutations never
// retry automatically, since an ambiguous failure may have succeeded remotely.
type APIClient struct {
	read         *resty.Client
	cart         *resty.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// NewClient builds a Kroger API client from the provided configuration values.
func NewClient(cfg config.KrogerConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	read := resty.New().
		SetBaseURL(base).
		SetTimeout(defaultTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError ||
				r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			if hint := r.Header().Get("Retry-After"); hint != "" {
				if secs, err := strconv.Atoi(hint); err == nil {
					return time.Duration(secs) * time.Second, nil
				}
			}
			return 0, nil
		})

	cart := resty.New().
		SetBaseURL(base).
		SetTimeout(defaultTimeout)

	return &APIClient{
		read:         read,
		cart:         cart,
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// BuildAuthorizeURL returns the browser URL for the interactive
// authorization-code flow. The client never opens it itself.
func (c *APIClient) BuildAuthorizeURL(redirectURI, state string, scopes []string) string {
	query := url.Values{}
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(scopes, " "))
	query.Set("state", state)
	return c.baseURL + authorizePath + "?" + query.Encode()
}

// ExchangeToken performs a form-encoded token exchange for any grant type.
func (c *APIClient) ExchangeToken(ctx context.Context, grant TokenGrant) (*TokenResponse, error) {
	result := new(TokenResponse)
	apiErr := new(apiErrorPayload)

	resp, err := c.read.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(grant.form()).
		SetResult(result).
		SetError(apiErr).
		Post(tokenPath)
	if err := c.checkResponse("token exchange", resp, err, apiErr); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, &APIError{Kind: KindInvalidRequest, Message: "token response missing access_token"}
	}
	return result, nil
}

type productEntry struct {
	ProductID   string `json:"productId"`
	UPC         string `json:"upc"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Items       []struct {
		UPC   string `json:"upc"`
		Price *struct {
			Regular float64 `json:"regular"`
		} `json:"price"`
		Inventory *struct {
			StockLevel string `json:"stockLevel"`
		} `json:"inventory"`
	} `json:"items"`
}

func (e productEntry) toCandidate(locationID string) models.ProductCandidate {
	candidate := models.ProductCandidate{
		ProductID:   e.ProductID,
		UPC:         e.UPC,
		Description: e.Description,
		Brand:       e.Brand,
		LocationID:  locationID,
	}
	if len(e.Items) > 0 {
		item := e.Items[0]
		if candidate.UPC == "" {
			candidate.UPC = item.UPC
		}
		if item.Price != nil {
			price := item.Price.Regular
			candidate.Price = &price
		}
		if item.Inventory != nil {
			candidate.Availability = item.Inventory.StockLevel
		}
	}
	return candidate
}

// SearchProducts returns catalog candidates for a term at a location, in the
// catalog service's own ranking order.
func (c *APIClient) SearchProducts(ctx context.Context, accessToken, term, locationID string, limit int) ([]models.ProductCandidate, error) {
	result := new(struct {
		Data []productEntry `json:"data"`
	})
	apiErr := new(apiErrorPayload)

	resp, err := c.read.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParams(map[string]string{
			"filter.term":       term,
			"filter.locationId": locationID,
			"filter.limit":      strconv.Itoa(limit),
		}).
		SetResult(result).
		SetError(apiErr).
		Get(productsPath)
	if err := c.checkResponse("product search", resp, err, apiErr); err != nil {
		return nil, err
	}

	candidates := make([]models.ProductCandidate, 0, len(result.Data))
	for _, entry := range result.Data {
		candidates = append(candidates, entry.toCandidate(locationID))
	}
	return candidates, nil
}

// GetProduct fetches a single product's detail, used to backfill item
// identifiers when search results omit them.
func (c *APIClient) GetProduct(ctx context.Context, accessToken, productID, locationID string) (*models.ProductCandidate, error) {
	result := new(struct {
		Data productEntry `json:"data"`
	})
	apiErr := new(apiErrorPayload)

	resp, err := c.read.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("filter.locationId", locationID).
		SetResult(result).
		SetError(apiErr).
		Get(fmt.Sprintf("%s/%s", productsPath, productID))
	if err := c.checkResponse("product detail", resp, err, apiErr); err != nil {
		return nil, err
	}

	candidate := result.Data.toCandidate(locationID)
	return &candidate, nil
}

// SearchLocations finds store locations near a zip code.
func (c *APIClient) SearchLocations(ctx context.Context, accessToken, zipCode string, limit int) ([]Location, error) {
	result := new(struct {
		Data []Location `json:"data"`
	})
	apiErr := new(apiErrorPayload)

	resp, err := c.read.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParams(map[string]string{
			"filter.zipCode.near": zipCode,
			"filter.limit":        strconv.Itoa(limit),
		}).
		SetResult(result).
		SetError(apiErr).
		Get(locationsPath)
	if err := c.checkResponse("location search", resp, err, apiErr); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// AddToCart adds one product line to the user's cart. The call is issued at
// most once; retry decisions belong to the caller.
func (c *APIClient) AddToCart(ctx context.Context, accessToken, productID string, quantity int, modality models.Modality) error {
	payload := map[string]any{
		"items": []map[string]any{
			{
				"upc":      productID,
				"quantity": quantity,
				"modality": string(modality),
			},
		},
	}
	apiErr := new(apiErrorPayload)

	resp, err := c.cart.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetError(apiErr).
		Put(cartAddPath)
	return c.checkResponse("cart add", resp, err, apiErr)
}

func (c *APIClient) checkResponse(op string, resp *resty.Response, err error, apiErr *apiErrorPayload) error {
	if err != nil {
		return &APIError{Kind: KindUpstreamUnavailable, Message: fmt.Sprintf("%s: %v", op, err)}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.message()
		if message == "" {
			message = op + " failed"
		}
		return &APIError{
			Kind:       classify(resp.StatusCode(), message),
			StatusCode: resp.StatusCode(),
			Message:    message,
		}
	}
	return nil
}
