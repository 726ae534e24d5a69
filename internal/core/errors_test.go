package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFeedErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewCommunicationError("fetching summary", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}

	wrapped := fmt.Errorf("outer context: %w", err)
	var feedErr *FeedError
	if !errors.As(wrapped, &feedErr) {
		t.Fatal("FeedError not reachable through errors.As")
	}
	if feedErr.Type != ErrorTypeCommunication {
		t.Errorf("type = %s", feedErr.Type)
	}
}

func TestFeedErrorMessage(t *testing.T) {
	err := NewNotFoundError("sport sr:sport:99 not found")
	if err.Error() != "not_found_error: sport sr:sport:99 not found" {
		t.Errorf("message = %q", err.Error())
	}

	withCause := NewDeserializationError("decoding summary", errors.New("unexpected end of input"))
	if withCause.Error() != "deserialization_error: decoding summary" {
		t.Errorf("message = %q", withCause.Error())
	}
}
