// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/classifier"
	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/history"
	"github.com/relabs-tech/proximity_gesture/internal/sensors"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	log.Infof("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// Settings maps the timing keys of cfg onto the state machine.
func Settings(cfg *config.Config) gesture.Settings {
	s := gesture.DefaultSettings()
	s.MonitorInterval = cfg.MonitorInterval
	s.DebouncePoll = cfg.DebouncePoll
	s.DebounceSettle = cfg.DebounceSettle
	return s
}

// NewClassifier builds the classifier selected by CLASSIFIER.
func NewClassifier(cfg *config.Config) (gesture.Classifier, error) {
	switch cfg.Classifier {
	case "remote":
		return classifier.NewRemote(cfg.ClassifierURL, gesture.WindowLen, cfg.ClassifierChunk), nil
	case "centroid":
		c, err := classifier.LoadCentroid(cfg.ClassifierModel, cfg.ClassifierChunk)
		if err != nil {
			return nil, err
		}
		if c.InputLen() != gesture.WindowLen {
			return nil, fmt.Errorf("centroid model %s takes %d features, the window holds %d",
				cfg.ClassifierModel, c.InputLen(), gesture.WindowLen)
		}
		return c, nil
	case "fixed", "":
		return classifier.NewFixed(gesture.WindowLen, cfg.ClassifierLabel), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", cfg.Classifier)
	}
}

// RunGesture runs the state machine on the hardware described by cfg until
// ctx is cancelled.
func RunGesture(ctx context.Context, cfg *config.Config) error {
	log.Info("gesture: starting proximity gesture recognizer")

	// A missing sensor is reported once; the machine keeps running on zeros.
	src, closeSrc, err := sensors.OpenProximity(cfg)
	if err != nil {
		if !errors.Is(err, sensors.ErrSensorUnavailable) {
			return err
		}
		log.Errorf("gesture: %v; readings will be zero", err)
	}
	defer closeSrc()

	button, err := sensors.OpenButton(cfg.ButtonPin)
	if err != nil {
		return err
	}

	c, err := NewClassifier(cfg)
	if err != nil {
		return err
	}
	log.Infof("gesture: using %s classifier", cfg.Classifier)

	var presenters Fanout
	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()

	text := NewTextLog(os.Stdout)
	if cfg.SerialConsolePort != "" {
		tl, port, err := OpenSerialLog(cfg.SerialConsolePort, cfg.SerialConsoleBaud)
		if err != nil {
			log.Warnf("gesture: %v; logging to stdout", err)
		} else {
			text = tl
			closers = append(closers, port)
		}
	}
	presenters = append(presenters, text)

	if cfg.DisplayEnabled {
		d, closeDisplay, err := OpenDisplay(cfg)
		if err != nil {
			log.Warnf("gesture: %v; running without display", err)
		} else {
			defer closeDisplay()
			presenters = append(presenters, d)
		}
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDSensor)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	presenters = append(presenters, NewPublisher(client, cfg))

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		closers = append(closers, store)
		presenters = append(presenters, store)
		log.Infof("gesture: recording results to %s", cfg.HistoryDB)
	}

	m := gesture.NewMachine(Settings(cfg), src, button, nil, c, presenters)
	err = m.Run(ctx)
	log.Infof("gesture: stopped, %+v", m.Stats())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
