package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"marketplace/api"
	"marketplace/cache"
	"marketplace/command"
	"marketplace/projection"
	"marketplace/publisher"
	"marketplace/query"
	"marketplace/readmodel"
	"marketplace/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing storage config")
	}
	tables := storage.Tables{
		Users:       envOr("USERS_TABLE", "users"),
		Sellers:     envOr("SELLERS_TABLE", "sellers"),
		Products:    envOr("PRODUCTS_TABLE", "products"),
		Inventories: envOr("INVENTORIES_TABLE", "inventories"),
		Orders:      envOr("ORDERS_TABLE", "orders"),
		Locations:   envOr("LOCATIONS_TABLE", "locations"),
		Events:      envOr("EVENTS_TABLE", "events"),
	}
	store, err := storage.New(connStr, tables)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	eventLog := storage.NewEventLog(store)

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisConn(redisConn))
	views := readmodel.New(rc)

	pub := publisher.New(eventLog, logger)
	if queueName := os.Getenv("PROJECTION_DEADLETTER_QUEUE"); queueName != "" {
		dl, err := storage.NewDeadLetter(connStr, queueName)
		if err != nil {
			log.Fatalf("dead letter queue: %v", err)
		}
		pub = pub.WithDeadLetter(dl)
	}
	if channel := os.Getenv("VIEW_UPDATE_CHANNEL"); channel != "" {
		pub = pub.WithNotifier(readmodel.NewUpdateNotifier(rc, channel))
	}
	projection.RegisterAll(pub, views, logger)

	registry := command.NewRegistry()
	command.NewUserService(store, pub, logger).RegisterHandlers(registry)
	command.NewSellerService(store, pub).RegisterHandlers(registry)
	command.NewProductService(store, pub, registry, logger).RegisterHandlers(registry)
	command.NewInventoryService(store, pub).RegisterHandlers(registry)
	command.NewOrderService(store, pub, registry, logger).RegisterHandlers(registry)
	command.NewLocationService(store, pub).RegisterHandlers(registry)

	resultCache := cache.New(envDuration("RESULT_CACHE_SWEEP", time.Minute))
	defer resultCache.Close()
	engine := query.NewEngine(views, views, store, resultCache, logger)

	var auth *api.Auth
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		auth = api.NewAuth(nil, "", "")
	} else {
		audience := os.Getenv("AUTH_AUDIENCE")
		authDomain := os.Getenv("AUTH_DOMAIN")
		if audience == "" || authDomain == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, audience, "https://"+authDomain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("marketplace"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, engine, registry, views, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}
	e.Logger.Fatal(e.Start(listenAddr))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}

// parseRedisConn accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form used by managed caches.
func parseRedisConn(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
