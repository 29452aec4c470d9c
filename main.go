package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/cache"
	"github.com/competitiveumar/HopeBridge/kafka"
	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
	"github.com/competitiveumar/HopeBridge/routes"
)

func initDB() *gorm.DB {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	pass := getEnv("DB_PASS", "postgres")
	name := getEnv("DB_NAME", "hopebridge")

	dsn := "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=disable TimeZone=UTC"
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect db:", err)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Fatal(err)
	}
	return db
}

func main() {
	db := initDB()

	rdb, err := cache.Connect(getEnv("REDIS_ADDR", "localhost:6379"))
	if err != nil {
		log.Printf("redis unavailable, running without cache: %v", err)
		rdb = nil
	}

	var producer sarama.SyncProducer
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		producer, err = kafka.NewSyncProducer(strings.Split(brokers, ","))
		if err != nil {
			log.Fatal("failed to start Kafka producer:", err)
		}
	} else {
		log.Println("KAFKA_BROKERS not set, events disabled")
	}

	stripeProvider := provider.NewStripeProvider(
		getEnv("STRIPE_SECRET_KEY", ""),
		getEnv("STRIPE_WEBHOOK_SECRET", ""),
		10*time.Second,
	)

	app := fiber.New()
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		DB:        db,
		Redis:     rdb,
		Producer:  producer,
		Provider:  stripeProvider,
		JWTSecret: getEnv("JWT_SECRET", "secret"),
	})

	addr := ":" + getEnv("PORT", "8000")
	log.Println("HTTP server running on", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal("fiber error:", err)
	}
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
