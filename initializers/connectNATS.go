package initializers

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

var NC *nats.Conn

// ConnectNATS dials the task broker. Delivery through NATS queue groups is
// at-least-once from the pipeline's point of view, so consumers must tolerate
// duplicate document IDs.
func ConnectNATS() error {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	log.Printf("Connecting to NATS at %s", url)

	var err error
	NC, err = nats.Connect(url,
		nats.Name("docupilot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Println("NATS connection successful")
	return nil
}
