// Command storefront runs the headless storefront client: it wires the cart,
// catalog, customer, checkout and payment components against a backend and
// walks one demo purchase from browsing to tracking number.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Astra2544/weingut-storefront/internal/cart"
	"github.com/Astra2544/weingut-storefront/internal/cartsync"
	"github.com/Astra2544/weingut-storefront/internal/catalog"
	"github.com/Astra2544/weingut-storefront/internal/checkout"
	"github.com/Astra2544/weingut-storefront/internal/config"
	"github.com/Astra2544/weingut-storefront/internal/customer"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
	"github.com/Astra2544/weingut-storefront/internal/payment"
	"github.com/Astra2544/weingut-storefront/internal/prefs"
	"github.com/Astra2544/weingut-storefront/internal/storage"
	"github.com/Astra2544/weingut-storefront/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("storefront failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	local, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	defer local.Close()

	hc := httpx.New(httpx.Options{
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Logger:     logger,
	})

	cartStore := cart.NewStore(local, logger)
	if err := cartStore.Load(ctx); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	preferences := prefs.New(local, cfg.Language, logger)
	products := catalog.NewClient(hc, cfg.BackendURL)
	account := customer.NewClient(hc, cfg.BackendURL, local, logger)
	sessions := checkout.NewClient(hc, cfg.BackendURL)
	payments := payment.NewClient(hc, cfg.BackendURL, sessions.Tracker(), cartStore, payment.Options{
		DemoEnabled:     cfg.DemoMode,
		ProcessingDelay: cfg.ProcessingDelay,
		Logger:          logger,
	})

	if err := account.Restore(ctx); err != nil {
		logger.WarnContext(ctx, "could not restore customer session", "error", err)
	}

	syncer := cartsync.New(account, products, cartStore, logger)
	syncer.Start(ctx)
	defer syncer.Close()
	if account.IsLoggedIn() {
		syncer.OnLogin(ctx)
	}

	logger.InfoContext(ctx, "storefront ready",
		"backend", cfg.BackendURL,
		"language", preferences.Language(ctx),
		"logged_in", account.IsLoggedIn(),
		"cart_items", len(cartStore.Items()))

	return demoFlow(ctx, cfg, logger, products, sessions, payments, cartStore, account)
}

// demoFlow walks one purchase end to end against the configured backend.
func demoFlow(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	products *catalog.Client,
	sessions *checkout.Client,
	payments *payment.Client,
	cartStore *cart.Store,
	account *customer.Client,
) error {
	if !cfg.DemoMode {
		logger.InfoContext(ctx, "demo mode disabled, nothing to do")
		return nil
	}

	all, err := products.Products(ctx, "")
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	logger.InfoContext(ctx, "catalog loaded", "products", len(all))

	added := 0
	for _, p := range all {
		if !p.InStock() {
			continue
		}
		cartStore.AddItem(ctx, p, 1)
		if added++; added == 2 {
			break
		}
	}
	if len(cartStore.Items()) == 0 {
		return fmt.Errorf("no products in stock")
	}
	logger.InfoContext(ctx, "cart filled", "items", len(cartStore.Items()), "subtotal", cartStore.Subtotal())

	req := checkout.InitiateRequest{
		CustomerName:    "Anna Meier",
		CustomerEmail:   "anna@example.com",
		ShippingAddress: "Weinstraße 12",
		ShippingCity:    "Bernkastel-Kues",
		ShippingPostal:  "54470",
		ShippingCountry: "DE",
	}
	if me := account.Me(); me != nil {
		req.CustomerID = me.ID
		req.CustomerName = me.FirstName + " " + me.LastName
		req.CustomerEmail = me.Email
	}

	created, err := sessions.Initiate(ctx, req, cartStore.Items())
	if err != nil {
		return fmt.Errorf("initiate checkout: %w", err)
	}
	logger.InfoContext(ctx, "checkout session created",
		"token", created.SessionToken, "total", created.TotalAmount, "demo", created.DemoMode)

	res := sessions.Resolve(ctx, created.SessionToken)
	if res.State != checkout.StateActive {
		return fmt.Errorf("session not active: %s", res.State)
	}

	result, err := payments.Complete(ctx, created.SessionToken, payment.CardDetails{
		HolderName: req.CustomerName,
		Number:     "4242 4242 4242 4242",
		Expiry:     "12/39",
		CVC:        "123",
	})
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}

	order, err := account.Track(ctx, result.Order.TrackingNumber)
	if err != nil {
		return fmt.Errorf("track order: %w", err)
	}
	logger.InfoContext(ctx, "order confirmed",
		"tracking_number", order.TrackingNumber,
		"invoice_number", order.InvoiceNumber,
		"total", order.TotalAmount,
		"status", order.Status)
	return nil
}

// openStorage picks the local-state backend: Redis when configured, SQLite
// otherwise.
func openStorage(cfg *config.Config) (storage.Store, error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storage.NewRedisStore(client, "storefront"), nil
	}
	return storage.OpenSQLite(cfg.DataPath)
}
