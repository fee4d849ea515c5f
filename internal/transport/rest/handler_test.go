package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/service"
	"github.com/abgdnv/storefront/internal/sizeguide"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService is a mock implementation of the StorefrontService interface.
// It returns its preset values and records the session it was called with.
type mockService struct {
	cart     *service.CartDto
	wishlist *service.WishlistDto
	filters  *service.FiltersDto
	panels   *service.PanelsDto
	products []service.ProductDto
	product  *service.ProductDto
	facets   *service.FacetsDto
	rec      *sizeguide.Recommendation
	in       bool
	error    error

	session string
	order   string
}

func (m *mockService) Cart(_ context.Context, session string) (*service.CartDto, error) {
	m.session = session
	return m.cart, m.error
}

func (m *mockService) AddToCart(_ context.Context, session string, _ service.AddToCartDto) (*service.CartDto, error) {
	m.session = session
	if m.error != nil {
		return nil, m.error
	}
	return m.cart, nil
}

func (m *mockService) UpdateQuantity(_ context.Context, session string, _ service.UpdateQuantityDto) (*service.CartDto, error) {
	m.session = session
	return m.cart, m.error
}

func (m *mockService) RemoveFromCart(_ context.Context, session string, _ service.LineKeyDto) (*service.CartDto, error) {
	m.session = session
	return m.cart, m.error
}

func (m *mockService) ClearCart(_ context.Context, session string) (*service.CartDto, error) {
	m.session = session
	return m.cart, m.error
}

func (m *mockService) Wishlist(_ context.Context, session string) (*service.WishlistDto, error) {
	m.session = session
	return m.wishlist, m.error
}

func (m *mockService) AddToWishlist(_ context.Context, session string, _ string) (*service.WishlistDto, error) {
	m.session = session
	if m.error != nil {
		return nil, m.error
	}
	return m.wishlist, nil
}

func (m *mockService) RemoveFromWishlist(_ context.Context, session string, _ string) (*service.WishlistDto, error) {
	m.session = session
	return m.wishlist, m.error
}

func (m *mockService) IsInWishlist(_ context.Context, session string, _ string) (bool, error) {
	m.session = session
	return m.in, m.error
}

func (m *mockService) Filters(_ context.Context, session string) (*service.FiltersDto, error) {
	m.session = session
	return m.filters, m.error
}

func (m *mockService) SetFilters(_ context.Context, session string, _ service.FiltersPatchDto) (*service.FiltersDto, error) {
	m.session = session
	if m.error != nil {
		return nil, m.error
	}
	return m.filters, nil
}

func (m *mockService) ResetFilters(_ context.Context, session string) (*service.FiltersDto, error) {
	m.session = session
	return m.filters, m.error
}

func (m *mockService) Panels(_ context.Context, session string) (*service.PanelsDto, error) {
	m.session = session
	return m.panels, m.error
}

func (m *mockService) SetPanels(_ context.Context, session string, _ service.PanelsPatchDto) (*service.PanelsDto, error) {
	m.session = session
	return m.panels, m.error
}

func (m *mockService) Products(_ context.Context, session string, order string) ([]service.ProductDto, error) {
	m.session = session
	m.order = order
	return m.products, m.error
}

func (m *mockService) Product(_ context.Context, _ string) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockService) Featured(_ context.Context) ([]service.ProductDto, error) {
	return m.products, m.error
}

func (m *mockService) Search(_ context.Context, _ string) ([]service.ProductDto, error) {
	return m.products, m.error
}

func (m *mockService) Facets(_ context.Context) (*service.FacetsDto, error) {
	return m.facets, m.error
}

func (m *mockService) RecommendSize(_ context.Context, _ service.MeasurementsDto) (*sizeguide.Recommendation, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.rec, nil
}

const testSessionID = "123e4567-e89b-12d3-a456-426614174000"

func newTestRouter(svc service.StorefrontService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := server.NewChiRouter(logger)
	NewHandler(svc, nil, logger).RegisterRoutes(mux)
	return mux
}

func doRequest(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var withSession = map[string]string{"X-Session-Id": testSessionID}

func Test_Handler_AddToCart(t *testing.T) {
	cart := &service.CartDto{
		Items: []service.CartLineDto{{
			ProductID: "1", Name: "Lace Bralette", Size: "M", Color: "Black", Quantity: 1,
			Price: decimal.NewFromInt(89), Subtotal: decimal.NewFromInt(89),
		}},
		Total: decimal.NewFromInt(89),
		Count: 1,
	}
	testCases := []struct {
		name         string
		mockService  mockService
		body         string
		headers      map[string]string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - item added",
			mockService:  mockService{cart: cart},
			body:         `{"productId":"1","size":"M","color":"Black"}`,
			headers:      withSession,
			expectedCode: http.StatusOK,
			expectedBody: `{"items":[{"productId":"1","name":"Lace Bralette","size":"M","color":"Black","quantity":1,"price":"89","subtotal":"89"}],"total":"89","count":1}`,
		},
		{
			name:         "Error - missing session",
			mockService:  mockService{cart: cart},
			body:         `{"productId":"1","size":"M","color":"Black"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"X-Session-Id header is required"}`,
		},
		{
			name:         "Error - validation",
			mockService:  mockService{cart: cart},
			body:         `{"productId":"1","color":"Black"}`,
			headers:      withSession,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Size":"failed on rule: required"}}`,
		},
		{
			name:         "Error - unknown field",
			mockService:  mockService{cart: cart},
			body:         `{"productId":"1","size":"M","color":"Black","price":1}`,
			headers:      withSession,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "Error - product not found",
			mockService:  mockService{error: sferrors.ErrProductNotFound},
			body:         `{"productId":"404","size":"M","color":"Black"}`,
			headers:      withSession,
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Product with ID 404 not found"}`,
		},
		{
			name:         "Error - variant not offered",
			mockService:  mockService{error: sferrors.ErrInvalidVariant},
			body:         `{"productId":"1","size":"XL","color":"Black"}`,
			headers:      withSession,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Product with ID 1 is not offered in size XL and color Black"}`,
		},
		{
			name:         "Error - service error",
			mockService:  mockService{error: errors.New("boom")},
			body:         `{"productId":"1","size":"M","color":"Black"}`,
			headers:      withSession,
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Failed to add item to cart"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestRouter(&tc.mockService)
			// when
			rr := doRequest(h, http.MethodPost, "/api/v1/cart/items", tc.body, tc.headers)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
		})
	}
}

func Test_Handler_SessionResolution(t *testing.T) {
	testCases := []struct {
		name            string
		headers         map[string]string
		expectedCode    int
		expectedSession string
	}{
		{
			name:            "Success - anonymous session",
			headers:         withSession,
			expectedCode:    http.StatusOK,
			expectedSession: "session:" + testSessionID,
		},
		{
			name:         "Error - malformed session id",
			headers:      map[string]string{"X-Session-Id": "not-a-uuid"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Error - no session",
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := &mockService{cart: &service.CartDto{Items: []service.CartLineDto{}}}
			h := newTestRouter(svc)
			// when
			rr := doRequest(h, http.MethodGet, "/api/v1/cart", "", tc.headers)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectedSession, svc.session)
			assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
		})
	}
}

func Test_Handler_RemoveFromCart(t *testing.T) {
	testCases := []struct {
		name         string
		query        string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - line removed",
			query:        "?productId=1&size=M&color=Black",
			expectedCode: http.StatusOK,
			expectedBody: `{"items":[],"total":"0","count":0}`,
		},
		{
			name:         "Error - missing color",
			query:        "?productId=1&size=M",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Color":"failed on rule: required"}}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestRouter(&mockService{cart: &service.CartDto{Items: []service.CartLineDto{}, Total: decimal.Zero}})
			// when
			rr := doRequest(h, http.MethodDelete, "/api/v1/cart/items"+tc.query, "", withSession)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_Handler_Wishlist(t *testing.T) {
	// given
	svc := &mockService{
		wishlist: &service.WishlistDto{Items: []service.WishlistEntryDto{}},
		in:       true,
	}
	h := newTestRouter(svc)

	// when
	rr := doRequest(h, http.MethodGet, "/api/v1/wishlist/7", "", withSession)
	// then
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"inWishlist":true}`, rr.Body.String())

	// when
	rr = doRequest(h, http.MethodPut, "/api/v1/wishlist/7", "", withSession)
	// then
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())

	// when
	svc.error = sferrors.ErrProductNotFound
	rr = doRequest(h, http.MethodPut, "/api/v1/wishlist/404", "", withSession)
	// then
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Product not found"}`, rr.Body.String())
}

func Test_Handler_SetFilters(t *testing.T) {
	filters := &service.FiltersDto{
		Category:   []string{"Bras"},
		Size:       []string{},
		Color:      []string{},
		PriceRange: service.PriceRangeDto{Min: decimal.Zero, Max: decimal.NewFromInt(1000)},
	}
	testCases := []struct {
		name         string
		mockService  mockService
		body         string
		expectedCode int
	}{
		{
			name:         "Success - partial patch",
			mockService:  mockService{filters: filters},
			body:         `{"category":["Bras"]}`,
			expectedCode: http.StatusOK,
		},
		{
			name:         "Error - invalid price range",
			mockService:  mockService{error: sferrors.ErrInvalidFilter},
			body:         `{"priceRange":{"min":100,"max":10}}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Error - blank category",
			mockService:  mockService{filters: filters},
			body:         `{"category":[""]}`,
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestRouter(&tc.mockService)
			// when
			rr := doRequest(h, http.MethodPatch, "/api/v1/filters", tc.body, withSession)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
		})
	}
}

func Test_Handler_ListProducts(t *testing.T) {
	products := []service.ProductDto{{ID: "1", Name: "Lace Bralette", Price: decimal.NewFromInt(89)}}

	t.Run("Success - anonymous browse", func(t *testing.T) {
		// given
		svc := &mockService{products: products}
		h := newTestRouter(svc)
		// when
		rr := doRequest(h, http.MethodGet, "/api/v1/products?sort=price-asc", "", nil)
		// then
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, svc.session)
		assert.Equal(t, "price-asc", svc.order)
		assert.Contains(t, rr.Body.String(), `"id":"1"`)
	})

	t.Run("Success - session filters apply", func(t *testing.T) {
		// given
		svc := &mockService{products: products}
		h := newTestRouter(svc)
		// when
		rr := doRequest(h, http.MethodGet, "/api/v1/products", "", withSession)
		// then
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "session:"+testSessionID, svc.session)
	})

	t.Run("Success - featured is not an id", func(t *testing.T) {
		// given
		svc := &mockService{products: products, error: nil}
		h := newTestRouter(svc)
		// when
		rr := doRequest(h, http.MethodGet, "/api/v1/products/featured", "", nil)
		// then
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"1"`)
	})
}

func Test_Handler_GetProduct(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  mockService
		id           string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Error - product not found",
			mockService:  mockService{error: sferrors.ErrProductNotFound},
			id:           "999",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Product with ID 999 not found"}`,
		},
		{
			name:         "Error - service error",
			mockService:  mockService{error: errors.New("service unavailable")},
			id:           "2",
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Failed to retrieve product with ID 2"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestRouter(&tc.mockService)
			// when
			rr := doRequest(h, http.MethodGet, "/api/v1/products/"+tc.id, "", nil)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_Handler_RecommendSize(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  mockService
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - size recommended",
			mockService:  mockService{rec: &sizeguide.Recommendation{Size: "S", Fit: sizeguide.FitPerfect}},
			body:         `{"bust":88,"waist":67,"hips":92}`,
			expectedCode: http.StatusOK,
			expectedBody: `{"size":"S","fit":"perfect"}`,
		},
		{
			name:         "Error - non-positive measurement",
			mockService:  mockService{},
			body:         `{"bust":0,"waist":67,"hips":92}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Bust":"failed on rule: gt"}}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestRouter(&tc.mockService)
			// when
			rr := doRequest(h, http.MethodPost, "/api/v1/size-guide", tc.body, nil)
			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_Handler_HealthCheck(t *testing.T) {
	h := newTestRouter(&mockService{})
	rr := doRequest(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
