package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// ReadingMessage is published on every monitor iteration.
type ReadingMessage struct {
	Time   time.Time        `json:"time"`
	Sample proximity.Sample `json:"sample"`
	// LastCycle identifies the result the device is currently showing.
	LastCycle *uuid.UUID `json:"last_cycle,omitempty"`
	LastLabel string     `json:"last_label,omitempty"`
}

// ErrorMessage is published when a capture cycle fails to classify.
type ErrorMessage struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
	Code   int       `json:"code"`
	Error  string    `json:"error"`
}

// publisher is the subset of mqtt.Client we publish through.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher forwards everything to MQTT as JSON.
type Publisher struct {
	client  publisher
	reading string
	result  string
	errors  string
	timeout time.Duration
	now     func() time.Time
}

func NewPublisher(client publisher, cfg *config.Config) *Publisher {
	return &Publisher{
		client:  client,
		reading: cfg.TopicReading,
		result:  cfg.TopicResult,
		errors:  cfg.TopicError,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal error (%s): %w", topic, err)
	}
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("MQTT publish timeout (%s)", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, err)
	}
	return nil
}

func (p *Publisher) ShowReading(s proximity.Sample, last *gesture.Result) error {
	msg := ReadingMessage{Time: p.now(), Sample: s}
	if last != nil {
		id := last.CycleID
		msg.LastCycle = &id
		if top, ok := last.Top(); ok {
			msg.LastLabel = top.Label
		}
	}
	return p.publish(p.reading, false, msg)
}

// ShowResult publishes retained so late subscribers see the current gesture.
func (p *Publisher) ShowResult(r gesture.Result) error {
	return p.publish(p.result, true, r)
}

func (p *Publisher) ShowFailure(err error) error {
	msg := ErrorMessage{
		Time:   p.now(),
		Status: gesture.StatusInferenceFailed.String(),
		Code:   int(gesture.StatusInferenceFailed),
		Error:  err.Error(),
	}
	var ie *gesture.InvocationError
	if errors.As(err, &ie) {
		msg.Status = ie.Status.String()
		msg.Code = int(ie.Status)
	}
	return p.publish(p.errors, false, msg)
}
