package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcapi "trade-ingestion-service/internal/api/grpc"
	"trade-ingestion-service/internal/observability/logging"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC server address")
	file := flag.String("file", "", "JSON file holding an array of records")
	sourceName := flag.String("source", "testclient", "source name used in the batch ID")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	payload := []byte(sampleTrades)
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read records")
		}
		payload = data
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	log.Info().Str("addr", *addr).Msg("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, grpcapi.SourceMetadataKey, *sourceName)

	var header metadata.MD
	out, err := client.Validate(ctx, wrapperspb.Bytes(payload), grpc.Header(&header))
	if err != nil {
		log.Fatal().Err(err).Msg("Validate failed")
	}

	log.Info().Strs("batchId", header.Get(grpcapi.BatchIDMetadataKey)).Msg("Received report")
	fmt.Println(string(out.GetValue()))
}

const sampleTrades = `[
  {"trade_id": "TRD-1001", "instrument": "AAPL", "isin": "US0378331005",
   "trade_date": "2024-01-15", "settlement_date": "2024-01-17",
   "buyer_lei": "5493001KJTIIGC8Y1R12", "seller_lei": "549300EX04Q2QBFQTQ27",
   "price": 189.5, "quantity": 100, "trade_type": "BUY", "venue": "XNAS"},
  {"trade_id": "TRD-1002", "instrument": "MSFT", "isin": "US59491",
   "trade_date": "15/01/2024", "settlement_date": "2024-01-17",
   "buyer_lei": "5493001KJTIIGC8Y1R12", "seller_lei": "BAD",
   "price": -1, "quantity": 10.5, "trade_type": "SELL", "venue": "XNAS"},
  {"instrument": "GOOG", "price": 0}
]`
