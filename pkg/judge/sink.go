// Copyright 2025 Certen Protocol
//
// FirestoreSink mirrors published verdicts to a Firestore collection on a
// best-effort basis. Grounded on pkg/firestore's client wiring pattern;
// publish failures never block the ruling pipeline.

package judge

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/certen/agentcourt/pkg/protocol"
)

// FirestoreSink publishes verdicts to a Firestore collection.
type FirestoreSink struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSink builds a sink writing documents to projectID's
// Firestore database, in the named collection.
func NewFirestoreSink(ctx context.Context, projectID, collection string) (*FirestoreSink, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("judge: firestore client: %w", err)
	}
	return &FirestoreSink{client: client, collection: collection}, nil
}

// Publish writes verdict as a document keyed by its VerdictID.
func (s *FirestoreSink) Publish(ctx context.Context, verdict protocol.VerdictPackage) error {
	_, err := s.client.Collection(s.collection).Doc(verdict.VerdictID).Set(ctx, verdict)
	if err != nil {
		return fmt.Errorf("judge: firestore publish: %w", err)
	}
	return nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreSink) Close() error {
	return s.client.Close()
}
