package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeaderURL(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"http://127.0.0.1:8080/header?start=2024-01-15&week=3",
		HeaderURL("http://127.0.0.1:8080/", start, 3),
	)
}

func TestCapturePNGRequiresURL(t *testing.T) {
	_, err := CapturePNG(context.Background(), Options{})
	assert.EqualError(t, err, "capture: URL is required")
}
