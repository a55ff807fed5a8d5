package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
)

// consolePrinter formats the published messages for a terminal.
type consolePrinter struct {
	out io.Writer
}

func (c consolePrinter) reading(payload []byte) error {
	var m ReadingMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("reading unmarshal error: %w", err)
	}
	last := m.LastLabel
	if last == "" {
		last = "-"
	}
	_, err := fmt.Fprintf(c.out, "[READ]  PROX=%4.2f  LIGHT=%4.2f  LAST=%s\n",
		m.Sample.Proximity, m.Sample.AmbientLight, last)
	return err
}

func (c consolePrinter) result(payload []byte) error {
	var r gesture.Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("result unmarshal error: %w", err)
	}
	top, _ := r.Top()
	fmt.Fprintf(c.out, "[GEST]  %s  %s (%.5f)  dsp=%dms inference=%dms\n",
		r.CapturedAt.Format("15:04:05"), top.Label, top.Value,
		r.Timing.DSP.Milliseconds(), r.Timing.Classification.Milliseconds())
	for _, s := range r.Scores {
		if _, err := fmt.Fprintf(c.out, "          %-12s %.5f\n", s.Label, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func (c consolePrinter) failure(payload []byte) error {
	var m ErrorMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("error unmarshal error: %w", err)
	}
	_, err := fmt.Fprintf(c.out, "[ERR ]  %s (%d): %s\n", m.Status, m.Code, m.Error)
	return err
}

func subscribe(client mqtt.Client, topic string, handle func([]byte) error) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handle(msg.Payload()); err != nil {
			log.Warnf("%s: %v", topic, err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Infof("subscribed to %s", topic)
	return nil
}

// RunConsoleMQTT prints everything the device publishes until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	p := consolePrinter{out: os.Stdout}
	if err := subscribe(client, cfg.TopicReading, p.reading); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicResult, p.result); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicError, p.failure); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}
