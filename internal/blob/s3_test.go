package blob

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestIsNotFound(t *testing.T) {
	for name, err := range map[string]error{
		"head not found":  &types.NotFound{},
		"get no such key": &types.NoSuchKey{},
		"wrapped":         fmt.Errorf("s3 head x: %w", &types.NotFound{}),
	} {
		if !isNotFound(err) {
			t.Errorf("%s: expected not-found classification", name)
		}
	}

	// Transport and auth failures must surface, not read as absence.
	for name, err := range map[string]error{
		"network": errors.New("dial tcp: connection refused"),
		"auth":    errors.New("operation error S3: HeadObject, api error AccessDenied"),
	} {
		if isNotFound(err) {
			t.Errorf("%s: must not be classified as not-found", name)
		}
	}
}
