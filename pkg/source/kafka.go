// Package source streams input paths into pipeline runs from external
// systems, so a batch job can be fed by a queue instead of a static list.
package source

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the subset of the kafka-go Reader the source depends on.
// It exists so unit tests can inject a mock.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes a topic whose message values are input paths (file
// paths, URLs, or object keys) and exposes them as a channel suitable for
// collecting into a pipeline run. Offsets are committed after a path has
// been handed over, so an interrupted consumer re-delivers unprocessed
// paths.
type KafkaSource struct {
	reader   KafkaReader
	doneChan chan struct{}
	wg       sync.WaitGroup
	pathChan chan string
}

// NewKafkaSource creates a source reading from the given topic. Offsets are
// committed manually, one message at a time.
func NewKafkaSource(topic, groupID, broker string) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
		// Disable auto-commit to manually control offset committing.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newKafkaSource(reader)
}

func newKafkaSource(reader KafkaReader) *KafkaSource {
	return &KafkaSource{
		reader:   reader,
		doneChan: make(chan struct{}),
		pathChan: make(chan string),
	}
}

// Paths returns the channel of input paths. It is closed when the source
// stops or the underlying topic reader is closed.
func (s *KafkaSource) Paths() <-chan string {
	return s.pathChan
}

// Start begins consuming in a separate goroutine.
func (s *KafkaSource) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.pathChan)

		log.Println("Starting Kafka path source loop...")

		for {
			select {
			case <-ctx.Done():
				log.Println("Context canceled, stopping path source loop.")
				return
			case <-s.doneChan:
				log.Println("Shutdown signal received, stopping path source loop.")
				return
			default:
				msg, err := s.reader.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "reader closed") || ctx.Err() != nil {
						return
					}
					log.Printf("Error reading message: %v", err)
					// Back off to avoid a tight error loop.
					time.Sleep(1 * time.Second)
					continue
				}

				inpath := strings.TrimSpace(string(msg.Value))
				if inpath == "" {
					continue
				}

				select {
				case s.pathChan <- inpath:
				case <-ctx.Done():
					return
				case <-s.doneChan:
					return
				}

				if err := s.reader.CommitMessages(ctx, msg); err != nil {
					log.Printf("Failed to commit offset for %s: %v", inpath, err)
				}
			}
		}
	}()
}

// Stop shuts the source down and closes the underlying reader. The reader
// is closed before waiting on the consume goroutine: closing is what
// unblocks a ReadMessage call that is parked waiting for the next message,
// since nothing else can reach it there.
func (s *KafkaSource) Stop() {
	close(s.doneChan)
	if err := s.reader.Close(); err != nil {
		log.Printf("Failed to close Kafka reader: %v", err)
	}
	s.wg.Wait()
}

// Collect gathers input paths from a source channel into a slice for a
// pipeline run. It returns when the channel closes, when max paths have
// been collected (max <= 0 means no limit), or when ctx is done.
func Collect(ctx context.Context, paths <-chan string, max int) []string {
	var collected []string
	for {
		select {
		case inpath, ok := <-paths:
			if !ok {
				return collected
			}
			collected = append(collected, inpath)
			if max > 0 && len(collected) >= max {
				return collected
			}
		case <-ctx.Done():
			return collected
		}
	}
}
