package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"colour-arcade-backend/models"

	"gorm.io/gorm"
)

const dispatchBatchSize = 100

// EventDispatchClient ships committed outbox events to the external
// indexer. Delivery is at-least-once: an event is only marked dispatched
// after the indexer acknowledged the batch.
type EventDispatchClient struct {
	IndexerURL string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

// NewEventDispatchClient returns nil when no INDEXER_URL is configured;
// the service then runs without an indexer feed.
func NewEventDispatchClient(db *gorm.DB) *EventDispatchClient {
	indexerURL := os.Getenv("INDEXER_URL")
	if indexerURL == "" {
		return nil
	}

	return &EventDispatchClient{
		IndexerURL: indexerURL,
		Token:      os.Getenv("ARCADE_SERVICE_TOKEN"),
		DB:         db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *EventDispatchClient) pendingEvents() ([]models.GameEvent, error) {
	var events []models.GameEvent
	err := c.DB.
		Where("dispatched = ?", false).
		Order("created_at ASC").
		Limit(dispatchBatchSize).
		Find(&events).Error
	return events, err
}

func (c *EventDispatchClient) pushBatch(ctx context.Context, events []models.GameEvent) error {
	body, err := json.Marshal(map[string]interface{}{"events": events})
	if err != nil {
		return fmt.Errorf("failed to encode event batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/events", c.IndexerURL), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

func (c *EventDispatchClient) dispatchOnce(ctx context.Context) error {
	events, err := c.pendingEvents()
	if err != nil {
		return fmt.Errorf("failed to load pending events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	if err := c.pushBatch(ctx, events); err != nil {
		return err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	err = c.DB.Model(&models.GameEvent{}).
		Where("id IN ?", ids).
		Update("dispatched", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark events dispatched: %w", err)
	}

	log.Printf("📤 [EVENTS] Dispatched %d events to indexer", len(events))
	return nil
}

// PollEvents runs the dispatch loop until the context is cancelled.
func PollEvents(ctx context.Context, client *EventDispatchClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Starting event dispatch worker (every %s)...", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Event dispatch worker stopping...")
			return
		case <-ticker.C:
			if err := client.dispatchOnce(ctx); err != nil {
				log.Printf("[EVENTS] Dispatch failed: %v", err)
			}
		}
	}
}
