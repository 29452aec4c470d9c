package kafka

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
)

const (
	TopicDonationCompleted = "donation.completed"
	TopicPaymentFailed     = "payment.failed"
	TopicGiftCardRedeemed  = "giftcard.redeemed"
)

// Event is the envelope every topic shares.
type Event struct {
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data"`
}

// NewSyncProducer connects with retries; the broker usually comes up
// later than this service in compose environments.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= 10; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Println("Kafka producer initialized")
			return producer, nil
		}
		log.Printf("Waiting for Kafka... (%d/10) Error: %v", i, err)
		time.Sleep(5 * time.Second)
	}
	return nil, err
}

// Publish sends one event envelope. A nil producer is a no-op so the
// service can run without a broker in development and tests.
func Publish(p sarama.SyncProducer, topic string, data interface{}) {
	if p == nil {
		return
	}
	b, err := json.Marshal(Event{EventType: topic, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", topic, err)
		return
	}
	_, _, err = p.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		log.Printf("Failed to send %s Kafka message: %v", topic, err)
	}
}
