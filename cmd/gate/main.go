// gate runs the authentication gateway: credential login, token refresh with
// rotation, logout, and access verification over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jeffr-K/metagate/internal/config"
	"github.com/Jeffr-K/metagate/internal/db"
	"github.com/Jeffr-K/metagate/internal/events"
	identityrepo "github.com/Jeffr-K/metagate/internal/identity/repository"
	"github.com/Jeffr-K/metagate/internal/revocation"
	"github.com/Jeffr-K/metagate/internal/security"
	"github.com/Jeffr-K/metagate/internal/server"
	sessionrepo "github.com/Jeffr-K/metagate/internal/session/repository"
	"github.com/Jeffr-K/metagate/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	keys, err := loadKeyset(cfg)
	if err != nil {
		log.Fatalf("keys: %v", err)
	}
	tokens, err := security.NewTokenProvider(keys, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	verifier, err := security.NewVerifier(cfg.BcryptCost, cfg.MaxConcurrentHashes)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}

	var publisher events.Publisher
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(brokers, cfg.SessionEventsTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		publisher = events.NewAsync(kp)
		log.Printf("session events on %s via %v", cfg.SessionEventsTopic, brokers)
	} else {
		log.Println("KAFKA_BROKERS not set; session events disabled")
	}

	engine := service.NewEngine(
		identityrepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresLedger(conn),
		revocation.NewRedisStore(rdb),
		tokens,
		verifier,
		publisher,
		cfg.RevokeSiblingsOnReuse,
	)

	srv := server.NewServer(cfg.HTTPAddr, engine)
	go func() {
		log.Printf("gate listening on %s", cfg.HTTPAddr)
		if err := srv.Run(); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gate...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if publisher != nil {
		// Let in-flight async publishes finish before closing the writer.
		time.Sleep(events.ShutdownDrainDuration)
		if err := publisher.Close(); err != nil {
			log.Printf("publisher close: %v", err)
		}
	}
	log.Println("gate stopped")
}

// loadKeyset builds the signing keyset from config: the current key pair plus
// the optional retiring public key.
func loadKeyset(cfg *config.Config) (*security.Keyset, error) {
	private, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	public, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	current := security.SigningKey{ID: cfg.JWTKeyID, Private: private, Public: public}

	var previous *security.SigningKey
	if cfg.JWTPreviousPublicKey != "" {
		prevPub, err := security.ParsePublicKey(cfg.JWTPreviousPublicKey)
		if err != nil {
			return nil, err
		}
		previous = &security.SigningKey{ID: cfg.JWTPreviousKeyID, Public: prevPub}
	}
	return security.NewKeyset(current, previous)
}
