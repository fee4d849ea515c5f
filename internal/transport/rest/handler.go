// Package rest provides HTTP handlers for the storefront's cart, wishlist,
// filters, UI panels, catalog and size guide.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/service"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  service.StorefrontService
	verifier auth.Verifier
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler. verifier may be nil, in which case only
// anonymous X-Session-Id sessions are recognized.
func NewHandler(service service.StorefrontService, verifier auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront HTTP routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(web.Session(h.verifier))
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddToCart)
				r.Put("/items", h.UpdateQuantity)
				r.Delete("/items", h.RemoveFromCart)
			})
			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.GetWishlist)
				r.Get("/{productId}", h.IsInWishlist)
				r.Put("/{productId}", h.AddToWishlist)
				r.Delete("/{productId}", h.RemoveFromWishlist)
			})
			r.Route("/filters", func(r chi.Router) {
				r.Get("/", h.GetFilters)
				r.Patch("/", h.SetFilters)
				r.Delete("/", h.ResetFilters)
			})
			r.Get("/ui", h.GetPanels)
			r.Put("/ui", h.SetPanels)

			r.Get("/products", h.ListProducts)
			r.Get("/products/featured", h.FeaturedProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/facets", h.GetFacets)
			r.Get("/search", h.Search)
			r.Post("/size-guide", h.RecommendSize)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// GetCart returns the session's cart with total and count.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	cart, err := h.service.Cart(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// AddToCart adds one unit of a product variant.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	var item service.AddToCartDto
	if !web.DecodeJSON(w, r, mLogger, h.validate, &item) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to add item to cart", "item", item)

	cart, err := h.service.AddToCart(r.Context(), session, item)
	if err != nil {
		if errors.Is(err, sferrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found", "ID", item.ProductID)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", item.ProductID))
			return
		} else if errors.Is(err, sferrors.ErrInvalidVariant) {
			mLogger.WarnContext(r.Context(), "Variant not offered", "ID", item.ProductID, "size", item.Size, "color", item.Color)
			web.RespondError(w, mLogger, http.StatusBadRequest,
				fmt.Sprintf("Product with ID %s is not offered in size %s and color %s", item.ProductID, item.Size, item.Color))
			return
		}
		h.respondServiceError(w, r, mLogger, err, "Failed to add item to cart")
		return
	}
	mLogger.InfoContext(r.Context(), "Item added to cart", "ID", item.ProductID, "count", cart.Count)
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	var item service.UpdateQuantityDto
	if !web.DecodeJSON(w, r, mLogger, h.validate, &item) {
		return
	}
	cart, err := h.service.UpdateQuantity(r.Context(), session, item)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// RemoveFromCart deletes the line named by the productId, size and color query parameters.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	q := r.URL.Query()
	key := service.LineKeyDto{ProductID: q.Get("productId"), Size: q.Get("size"), Color: q.Get("color")}
	if err := h.validate.Struct(key); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return
		}
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	cart, err := h.service.RemoveFromCart(r.Context(), session, key)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	cart, err := h.service.ClearCart(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to clear cart")
		return
	}
	mLogger.InfoContext(r.Context(), "Cart cleared")
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	list, err := h.service.Wishlist(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve wishlist")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// IsInWishlist answers {"inWishlist":bool} for the product in the path.
func (h *Handler) IsInWishlist(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	in, err := h.service.IsInWishlist(r.Context(), session, productID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve wishlist")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]bool{"inWishlist": in})
}

func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	list, err := h.service.AddToWishlist(r.Context(), session, productID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update wishlist")
		return
	}
	mLogger.InfoContext(r.Context(), "Product saved to wishlist", "ID", productID)
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	list, err := h.service.RemoveFromWishlist(r.Context(), session, chi.URLParam(r, "productId"))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update wishlist")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	filters, err := h.service.Filters(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve filters")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, filters)
}

// SetFilters applies a partial filter update.
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	var patch service.FiltersPatchDto
	if !web.DecodeJSON(w, r, mLogger, h.validate, &patch) {
		return
	}
	filters, err := h.service.SetFilters(r.Context(), session, patch)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update filters")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, filters)
}

func (h *Handler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	filters, err := h.service.ResetFilters(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to reset filters")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, filters)
}

func (h *Handler) GetPanels(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	panels, err := h.service.Panels(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve UI state")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, panels)
}

func (h *Handler) SetPanels(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, ok := web.RequireSession(w, r, mLogger)
	if !ok {
		return
	}
	var patch service.PanelsPatchDto
	if !web.DecodeJSON(w, r, mLogger, h.validate, &patch) {
		return
	}
	panels, err := h.service.SetPanels(r.Context(), session, patch)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update UI state")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, panels)
}

// ListProducts lists the catalog. With a session its filters apply; sort
// selects the order.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session, _ := web.GetSession(r.Context())
	order := r.URL.Query().Get("sort")
	mLogger.DebugContext(r.Context(), "Received request to list products", "sort", order)
	products, err := h.service.Products(r.Context(), session, order)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(products))
	web.RespondJSON(w, mLogger, http.StatusOK, products)
}

func (h *Handler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	products, err := h.service.Featured(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch products")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, products)
}

// GetProduct retrieves a product by its ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id := chi.URLParam(r, "id")
	found, err := h.service.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, sferrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

func (h *Handler) GetFacets(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	facets, err := h.service.Facets(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch facets")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, facets)
}

// Search matches the q query parameter against the catalog.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	query := r.URL.Query().Get("q")
	products, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to search products")
		return
	}
	mLogger.DebugContext(r.Context(), "Search completed", "query", query, "count", len(products))
	web.RespondJSON(w, mLogger, http.StatusOK, products)
}

// RecommendSize maps body measurements to a size from the chart.
func (h *Handler) RecommendSize(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var m service.MeasurementsDto
	if !web.DecodeJSON(w, r, mLogger, h.validate, &m) {
		return
	}
	rec, err := h.service.RecommendSize(r.Context(), m)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to recommend a size")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, rec)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps the service sentinels shared by most routes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, message string) {
	switch {
	case errors.Is(err, sferrors.ErrSessionRequired):
		web.RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s header is required", web.XSessionID))
	case errors.Is(err, sferrors.ErrProductNotFound):
		logger.WarnContext(r.Context(), "Product not found", "error", err)
		web.RespondError(w, logger, http.StatusNotFound, "Product not found")
	case errors.Is(err, sferrors.ErrInvalidFilter), errors.Is(err, sferrors.ErrInvalidMeasurements):
		logger.WarnContext(r.Context(), "Rejected request", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), message, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, message)
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
