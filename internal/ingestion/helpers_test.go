package ingestion

import (
	"context"
	"errors"
)

func testBackgroundCtx() context.Context { return context.Background() }

var errDecodeFailureForTest = errors.New("simulated decode failure")
