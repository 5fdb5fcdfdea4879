package emr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/ratelimit"

	"github.com/muzima/registration-worker/cdc"
)

const (
	// The period of time before the token expiration when we should refresh it
	expirationDelta = 1 * time.Minute
	tokenLifetime   = 5 * time.Minute
	tokenIssuer     = "reconciliation-worker"
)

type ClientConfig struct {
	Address           string
	Secret            string
	RequestsPerSecond int
	Timeout           time.Duration
}

// Client talks to the host EMR REST API. It implements MasterData, PersonDirectory and EncounterWriter.
type Client struct {
	config      ClientConfig
	restyClient *resty.Client
	limiter     ratelimit.Limiter

	token *Token
	mu    sync.Mutex
}

var _ MasterData = &Client{}
var _ PersonDirectory = &Client{}
var _ EncounterWriter = &Client{}

func NewClient(config ClientConfig) (*Client, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("emr address is required")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("emr secret is required")
	}

	limiter := ratelimit.NewUnlimited()
	if config.RequestsPerSecond > 0 {
		limiter = ratelimit.New(config.RequestsPerSecond)
	}

	restyClient := resty.New().
		SetBaseURL(config.Address).
		SetHeader("Accept", "application/json")
	if config.Timeout > 0 {
		restyClient.SetTimeout(config.Timeout)
	}

	return &Client{
		config:      config,
		restyClient: restyClient,
		limiter:     limiter,
	}, nil
}

func (c *Client) IdentifierTypeByName(ctx context.Context, name string) (*IdentifierType, error) {
	return findFirst[IdentifierType](ctx, c, "/v1/identifier-types", "name", name)
}

func (c *Client) IdentifierTypeById(ctx context.Context, id int) (*IdentifierType, error) {
	return findFirst[IdentifierType](ctx, c, "/v1/identifier-types", "id", strconv.Itoa(id))
}

func (c *Client) IdentifierTypeByUuid(ctx context.Context, uuid string) (*IdentifierType, error) {
	return findFirst[IdentifierType](ctx, c, "/v1/identifier-types", "uuid", uuid)
}

func (c *Client) LocationById(ctx context.Context, id int) (*Location, error) {
	return findFirst[Location](ctx, c, "/v1/locations", "id", strconv.Itoa(id))
}

func (c *Client) LocationByUuid(ctx context.Context, uuid string) (*Location, error) {
	return findFirst[Location](ctx, c, "/v1/locations", "uuid", uuid)
}

func (c *Client) ConceptById(ctx context.Context, id int) (*Concept, error) {
	return findFirst[Concept](ctx, c, "/v1/concepts", "id", strconv.Itoa(id))
}

func (c *Client) EncounterTypeById(ctx context.Context, id int) (*EncounterType, error) {
	return findFirst[EncounterType](ctx, c, "/v1/encounter-types", "id", strconv.Itoa(id))
}

func (c *Client) EncounterTypeByUuid(ctx context.Context, uuid string) (*EncounterType, error) {
	return findFirst[EncounterType](ctx, c, "/v1/encounter-types", "uuid", uuid)
}

func (c *Client) FormByUuid(ctx context.Context, uuid string) (*Form, error) {
	return findFirst[Form](ctx, c, "/v1/forms", "uuid", uuid)
}

func (c *Client) UserById(ctx context.Context, id int) (*User, error) {
	return findFirst[User](ctx, c, "/v1/users", "id", strconv.Itoa(id))
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	return findFirst[User](ctx, c, "/v1/users", "username", username)
}

func (c *Client) UserByUuid(ctx context.Context, uuid string) (*User, error) {
	return findFirst[User](ctx, c, "/v1/users", "uuid", uuid)
}

func (c *Client) FindPersonsByIdentifier(ctx context.Context, identifier string) ([]Person, error) {
	return find[Person](ctx, c, "/v1/persons", "identifier", identifier)
}

func (c *Client) FindPersonsByName(ctx context.Context, fullName string) ([]Person, error) {
	return find[Person](ctx, c, "/v1/persons", "name", fullName)
}

func (c *Client) GetPerson(ctx context.Context, uuid string) (*Person, error) {
	req, err := c.getRequestWithFreshToken(ctx)
	if err != nil {
		return nil, err
	}

	person := &Person{}
	httpErr := &ErrorResponse{}
	resp, err := req.
		SetPathParam("uuid", uuid).
		SetResult(person).
		SetError(httpErr).
		Get("/v1/persons/{uuid}")
	if err != nil {
		return nil, fmt.Errorf("unable to get person %s: %w", uuid, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unable to get person %s: %w", uuid, httpErr.withStatus(resp.StatusCode()))
	}
	return person, nil
}

func (c *Client) CreatePerson(ctx context.Context, person Person) error {
	return c.post(ctx, "/v1/persons", person)
}

func (c *Client) CreateEncounter(ctx context.Context, encounter Encounter) error {
	return c.post(ctx, "/v1/encounters", encounter)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	req, err := c.getRequestWithFreshToken(ctx)
	if err != nil {
		return err
	}

	httpErr := &ErrorResponse{}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetError(httpErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("unable to post to %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return ErrConflict
	}
	if resp.IsError() {
		return fmt.Errorf("unable to post to %s: %w", path, httpErr.withStatus(resp.StatusCode()))
	}
	return nil
}

type results[T any] struct {
	Results []T `json:"results"`
}

func find[T any](ctx context.Context, c *Client, path, param, value string) ([]T, error) {
	req, err := c.getRequestWithFreshToken(ctx)
	if err != nil {
		return nil, err
	}

	result := &results[T]{}
	httpErr := &ErrorResponse{}
	resp, err := req.
		SetQueryParam(param, value).
		SetResult(result).
		SetError(httpErr).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("unable to query %s by %s: %w", path, param, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unable to query %s by %s: %w", path, param, httpErr.withStatus(resp.StatusCode()))
	}
	return result.Results, nil
}

func findFirst[T any](ctx context.Context, c *Client, path, param, value string) (*T, error) {
	found, err := find[T](ctx, c, path, param, value)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (c *Client) getRequestWithFreshToken(ctx context.Context) (*resty.Request, error) {
	token, err := c.freshToken()
	if err != nil {
		return nil, err
	}

	c.limiter.Take()
	return c.restyClient.R().SetContext(ctx).SetAuthToken(token.AccessToken), nil
}

func (c *Client) freshToken() (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || c.token.IsExpired(expirationDelta) {
		token, err := c.newToken()
		if err != nil {
			return nil, fmt.Errorf("error obtaining token: %w", err)
		}
		c.token = token
	}
	return c.token, nil
}

func (c *Client) newToken() (*Token, error) {
	now := time.Now()
	nonce, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	expirationTime := now.Add(tokenLifetime)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		ID:        nonce.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.config.Secret))
	if err != nil {
		return nil, err
	}

	return &Token{AccessToken: signed, ExpirationTime: expirationTime}, nil
}

type Token struct {
	AccessToken    string
	ExpirationTime time.Time
}

func (t *Token) IsExpired(delta time.Duration) bool {
	return time.Now().After(t.ExpirationTime.Add(-delta))
}

type ErrorResponse struct {
	StatusCode  int    `json:"-"`
	ErrorDetail string `json:"error"`
}

func (e *ErrorResponse) withStatus(code int) *ErrorResponse {
	e.StatusCode = code
	return e
}

func (e *ErrorResponse) Error() string {
	if e.ErrorDetail == "" {
		return fmt.Sprintf("unexpected response status %d", e.StatusCode)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.ErrorDetail)
}

// IsTransient is true for responses a retry could succeed on
func (e *ErrorResponse) IsTransient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Unwrap marks client errors as permanent so they are not redelivered
func (e *ErrorResponse) Unwrap() error {
	if e.IsTransient() {
		return nil
	}
	return cdc.ErrPermanent
}
