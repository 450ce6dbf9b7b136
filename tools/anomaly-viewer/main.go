// Anomaly Viewer - live display of trade anomalies
// Consumes the anomaly topic and pushes each event to browsers over WebSocket
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// decodeEvent parses one anomaly message, ignoring other event types.
func decodeEvent(value []byte) (AnomalyEvent, bool) {
	var event AnomalyEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Warn().Err(err).Msg("JSON unmarshal error")
		return event, false
	}
	if event.EventType != "" && event.EventType != "trade.anomaly.detected" {
		return event, false
	}
	return event, true
}

// readerConfig joins a consumer group so every partition of the anomaly
// topic is read. New groups start at the newest offset unless fromStart.
func readerConfig(brokers, topic, groupID string, fromStart bool) kafka.ReaderConfig {
	start := kafka.LastOffset
	if fromStart {
		start = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:     strings.Split(brokers, ","),
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: start,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
}

func consumeKafka(ctx context.Context, hub *Hub, cfg kafka.ReaderConfig) {
	reader := kafka.NewReader(cfg)
	defer reader.Close()

	topic := cfg.Topic
	log.Info().Str("topic", topic).Str("groupId", cfg.GroupID).Msg("Consuming from Kafka topic")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		event, ok := decodeEvent(msg.Value)
		if !ok {
			continue
		}

		log.Debug().
			Str("tradeId", event.TradeID).
			Str("batchId", event.BatchID).
			Int("issues", len(event.Issues)).
			Msg("Received anomaly")
		hub.broadcast <- event
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "trades.anomalies", "Anomaly topic")
	group := flag.String("group", "anomaly-viewer", "Kafka consumer group")
	fromStart := flag.Bool("from-start", false, "Replay the topic from the oldest offset when the group is new")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	hub := newHub()
	go hub.run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumeKafka(ctx, hub, readerConfig(*brokers, *topic, *group, *fromStart))

	// Serve static files
	staticFS, _ := fs.Sub(staticFiles, "static")
	http.Handle("/", http.FileServer(http.FS(staticFS)))

	// WebSocket endpoint
	http.HandleFunc("/ws", wsHandler(hub))

	log.Info().
		Str("url", "http://localhost:"+*port).
		Str("brokers", *brokers).
		Str("topic", *topic).
		Msg("Anomaly Viewer starting")

	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
