package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/config"
	"github.com/example/sooq/internal/handlers"
	"github.com/example/sooq/internal/middleware"
	"github.com/example/sooq/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, logger zerolog.Logger) {
	gateway := services.NewMoyasarClient(cfg.MoyasarBaseURL, cfg.MoyasarSecretKey, cfg.HTTPTimeout)
	courier := services.NewOTOClient(cfg.OTOBaseURL, cfg.OTORefreshToken, cfg.HTTPTimeout)

	cartService := services.NewCartService(db, cfg.GuestCartTTL)
	promoService := services.NewPromoService(db)
	shipmentService := services.NewShipmentService(db, courier, logger, cfg.OTOPickupID, cfg.OTODeliveryOpt, cfg.EstimatedTransit, cfg.TaxRate)
	orderService := services.NewOrderService(db, promoService, shipmentService, logger, cfg.TaxRate, cfg.OrderNumPrefix)
	paymentService := services.NewPaymentService(db, gateway, orderService, shipmentService, logger, cfg.PaymentCallback, cfg.PaymentWebhook)

	authHandler := handlers.NewAuthHandler(db, cfg)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(cartService)
	wishlistHandler := handlers.NewWishlistHandler(db, cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg)
	promoHandler := handlers.NewPromoHandler(promoService)
	shipmentHandler := handlers.NewShipmentHandler(shipmentService)

	authRequired := middleware.AuthMiddleware(cfg)
	authOptional := middleware.OptionalAuthMiddleware(cfg)
	adminOnly := middleware.RequireAdmin()

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", authRequired, authHandler.Me)

	// Products
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", authRequired, adminOnly, productHandler.CreateProduct)
	products.Put("/:id", authRequired, adminOnly, productHandler.UpdateProduct)
	products.Delete("/:id", authRequired, adminOnly, productHandler.DeleteProduct)

	// Cart, usable by guests via session cookie
	cart := api.Group("/cart", authOptional)
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:productId", cartHandler.UpdateQuantity)
	cart.Delete("/items/:productId", cartHandler.RemoveItem)
	cart.Post("/merge", authRequired, cartHandler.MergeGuestCart)

	// Wishlist
	wishlist := api.Group("/wishlist", authRequired)
	wishlist.Get("/", wishlistHandler.List)
	wishlist.Post("/move-to-cart", wishlistHandler.MoveAllToCart)
	wishlist.Post("/:productId/move-to-cart", wishlistHandler.MoveItemToCart)
	wishlist.Post("/:productId", wishlistHandler.Add)
	wishlist.Delete("/:productId", wishlistHandler.Remove)

	// Orders
	orders := api.Group("/orders", authRequired)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)

	// Payments. Webhook and callback are hit by the gateway, not by users.
	payments := api.Group("/payments")
	payments.Post("/", authRequired, paymentHandler.CreatePayment)
	payments.Post("/webhook", paymentHandler.Webhook)
	payments.Get("/callback", paymentHandler.Callback)

	// Promo codes
	promos := api.Group("/promos")
	promos.Post("/validate", authOptional, promoHandler.Validate)
	promos.Post("/", authRequired, adminOnly, promoHandler.Create)
	promos.Get("/", authRequired, adminOnly, promoHandler.List)
	promos.Get("/:id", authRequired, adminOnly, promoHandler.Get)
	promos.Put("/:id", authRequired, adminOnly, promoHandler.Update)
	promos.Delete("/:id", authRequired, adminOnly, promoHandler.Delete)

	// Shipments
	shipments := api.Group("/shipments")
	shipments.Get("/", authRequired, shipmentHandler.ListMyShipments)
	shipments.Get("/track/:trackingNumber", shipmentHandler.Track)
	shipments.Post("/webhook", shipmentHandler.CourierWebhook)

	// Admin
	admin := api.Group("/admin", authRequired, adminOnly)
	admin.Get("/orders", orderHandler.ListAllOrders)
	admin.Get("/orders/:id", orderHandler.GetOrderAdmin)
	admin.Put("/orders/:id/delivered", orderHandler.MarkDelivered)
	admin.Post("/orders/:orderId/shipment", shipmentHandler.Retrigger)
	admin.Post("/payments/:orderId/refund", paymentHandler.Refund)
	admin.Post("/payments/:orderId/cancel", paymentHandler.Cancel)
}
