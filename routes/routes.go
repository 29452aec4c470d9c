package routes

import (
	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/controller"
	"github.com/competitiveumar/HopeBridge/giftcards"
	"github.com/competitiveumar/HopeBridge/ledger"
	"github.com/competitiveumar/HopeBridge/middleware"
	"github.com/competitiveumar/HopeBridge/provider"
	"github.com/competitiveumar/HopeBridge/rates"
)

type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Producer  sarama.SyncProducer
	Provider  provider.Provider
	JWTSecret string
}

func Register(app *fiber.App, deps Deps) {
	ledgerSvc := ledger.NewService(deps.DB, deps.Provider, deps.Producer, deps.Redis)
	giftSvc := giftcards.NewService(deps.DB)
	rateCache := rates.NewCache(deps.DB, deps.Redis)

	pc := &controller.ProjectController{DB: deps.DB, Redis: deps.Redis, Ledger: ledgerSvc}
	dc := &controller.DonationController{DB: deps.DB, Ledger: ledgerSvc}
	cc := &controller.CartController{DB: deps.DB, Ledger: ledgerSvc}
	pay := &controller.PaymentController{DB: deps.DB, Ledger: ledgerSvc}
	gc := &controller.GiftCardController{DB: deps.DB, Service: giftSvc}
	rc := &controller.RatesController{Cache: rateCache}

	identity := middleware.Identity(deps.JWTSecret)
	authed := middleware.AuthRequired()
	admin := middleware.RoleRequired("admin")

	api := app.Group("/api", identity)

	p := api.Group("/projects")
	p.Get("/", pc.List)
	p.Get("/:id", pc.Get)
	p.Post("/:id/donate", pc.Donate)
	p.Get("/:id/allocation", pc.GetAllocation)
	p.Post("/:id/allocation", authed, admin, pc.SetAllocation)

	d := api.Group("/donations")
	d.Get("/", authed, dc.List)
	d.Get("/:id", authed, dc.Get)
	d.Post("/:id/confirm-payment", dc.ConfirmPayment)
	d.Post("/:id/refund", authed, admin, dc.Refund)

	cart := api.Group("/cart")
	cart.Get("/", cc.List)
	cart.Post("/", cc.Add)
	cart.Delete("/:id", cc.Delete)
	cart.Post("/checkout", cc.Checkout)
	cart.Post("/gift-card", cc.AttachGiftCard)

	g := api.Group("/gift-cards")
	g.Get("/designs", gc.ListDesigns)
	g.Post("/", gc.Create)
	g.Post("/validate", gc.Validate)
	g.Post("/redeem", gc.Redeem)
	g.Get("/user", authed, gc.ListUser)
	g.Get("/redeemed", authed, gc.ListRedeemed)

	api.Post("/create-payment-intent", pay.CreateIntent)
	api.Get("/payments/:id", authed, pay.Get)
	api.Post("/webhook/stripe", pay.Webhook)

	api.Get("/rates/:base", rc.Get)
}
