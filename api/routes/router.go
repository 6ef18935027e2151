package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velourastyle/storefront-gateway/api/controllers"
	"github.com/velourastyle/storefront-gateway/api/middleware"
	"github.com/velourastyle/storefront-gateway/internal/cart"
	"github.com/velourastyle/storefront-gateway/internal/catalog"
	"github.com/velourastyle/storefront-gateway/internal/customer"
	"github.com/velourastyle/storefront-gateway/internal/identity"
	"github.com/velourastyle/storefront-gateway/internal/orders"
	"github.com/velourastyle/storefront-gateway/internal/reviews"
	"github.com/velourastyle/storefront-gateway/internal/wishlist"
	"github.com/velourastyle/storefront-gateway/pkg/config"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Shared   sharedstore.Pinger
	Identity *identity.Service
	Cart     *cart.Engine
	Catalog  *catalog.Service
	Wishlist *wishlist.Service
	Badge    *wishlist.BadgeCounter
	Reviews  *reviews.Service
	Customer *customer.Service
	Orders   *orders.Service
	Metrics  http.Handler
}

func NewRouter(deps Deps) chi.Router {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	if deps.Config != nil {
		r.Use(middleware.CORS(deps.Config.CORS.Origins))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.Shared, logg))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", controllers.Login(deps.Identity, logg))
			r.Post("/register", controllers.Register(deps.Identity, logg))
			r.Post("/forgot-password", controllers.ForgotPassword(deps.Identity, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(deps.Identity, logg))
				r.Post("/logout", controllers.Logout(deps.Identity, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Identity, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.Cart, logg))
				r.Delete("/", controllers.ClearCart(deps.Cart, logg))
				r.Post("/sync", controllers.SyncCart(deps.Cart, logg))
				r.Post("/lines", controllers.UpsertCartLine(deps.Cart, logg))
				r.Put("/lines/{key}", controllers.SetCartQuantity(deps.Cart, logg))
				r.Delete("/lines/{key}", controllers.RemoveCartLine(deps.Cart, logg))
				r.Post("/discount", controllers.ApplyDiscountCode(deps.Cart, logg))
				r.Delete("/discount", controllers.RemoveDiscountCode(deps.Cart, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.ListWishlist(deps.Wishlist, logg))
				r.Post("/", controllers.AddWishlistItem(deps.Wishlist, logg))
				r.Get("/badge", controllers.WishlistBadge(deps.Badge, logg))
				r.Get("/{key}", controllers.ContainsWishlistItem(deps.Wishlist, logg))
				r.Delete("/{key}", controllers.RemoveWishlistItem(deps.Wishlist, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.SearchProducts(deps.Catalog, logg))
				r.Get("/{handle}", controllers.GetProduct(deps.Catalog, logg))
				r.Route("/{handle}/reviews", func(r chi.Router) {
					r.Get("/", controllers.ListReviews(deps.Reviews, logg))
					r.Get("/summary", controllers.SummarizeReviews(deps.Reviews, logg))
					r.Post("/", controllers.SubmitReview(deps.Reviews, logg))
					r.Delete("/", controllers.DeleteReview(deps.Reviews, logg))
				})
			})

			r.Route("/customer", func(r chi.Router) {
				r.Get("/profile", controllers.GetProfile(deps.Customer, logg))
				r.Put("/profile", controllers.UpdateProfile(deps.Customer, logg))
				r.Get("/addresses", controllers.ListAddresses(deps.Customer, logg))
				r.Post("/addresses", controllers.AddAddress(deps.Customer, logg))
				r.Get("/orders", controllers.ListOrders(deps.Customer, logg))
				r.Get("/orders/{id}", controllers.GetOrder(deps.Customer, logg))
				r.Post("/orders/{id}/cancel", controllers.CancelOrder(deps.Customer, logg))
			})

			r.Post("/checkout", controllers.Checkout(deps.Orders, logg))
		})
	})

	return r
}
