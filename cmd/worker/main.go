// Worker consumes security events from Kafka and archives them as audit log
// entries, giving the audit trail a durable copy of the event stream.
// Set KAFKA_BROKERS, SECURITY_EVENTS_TOPIC, SECURITY_EVENTS_GROUP_ID, and DATABASE_URL.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"merchant-docs/backend/internal/audit"
	auditdomain "merchant-docs/backend/internal/audit/domain"
	auditrepo "merchant-docs/backend/internal/audit/repository"
	"merchant-docs/backend/internal/config"
	"merchant-docs/backend/internal/db"
	"merchant-docs/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.SecurityKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer database.Close()
	auditLogs := auditrepo.NewPostgresRepository(database)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SecurityKafkaTopic,
		GroupID:        cfg.SecurityKafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming %s (group %s)", cfg.SecurityKafkaTopic, cfg.SecurityKafkaGroupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var event telemetry.SecurityEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("worker: skipping malformed event at offset %d: %v", msg.Offset, err)
			continue
		}

		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := auditLogs.Create(writeCtx, archiveEntry(&event)); err != nil {
			log.Printf("worker: archive failed for event %s: %v", event.ID, err)
		}
		writeCancel()
	}
}

func archiveEntry(event *telemetry.SecurityEvent) *auditdomain.AuditLog {
	merchantID := event.MerchantID
	if merchantID == "" {
		merchantID = audit.SentinelMerchantID
	}
	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &auditdomain.AuditLog{
		ID:         event.ID,
		MerchantID: merchantID,
		UserID:     event.UserID,
		Action:     event.Type,
		Resource:   "security_event",
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		Metadata:   event.Detail,
		CreatedAt:  createdAt,
	}
}
