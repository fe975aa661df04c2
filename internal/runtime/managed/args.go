package managed

import (
	"fmt"
	"strconv"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// Operation arguments arrive either as Go values or decoded from JSON, so
// numbers may be float64 and booleans may be strings.

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("argument %d: %w: missing", i, flowerrors.ErrInvalidArgument)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("argument %d: %w: nil", i, flowerrors.ErrInvalidArgument)
	default:
		return fmt.Sprint(v), nil
	}
}

func argBool(args []any, i int, def bool) (bool, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch v := args[i].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("argument %d: %w: %q is not a boolean", i, flowerrors.ErrInvalidArgument, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("argument %d: %w: %T is not a boolean", i, flowerrors.ErrInvalidArgument, v)
	}
}

func argInt64(args []any, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("argument %d: %w: missing", i, flowerrors.ErrInvalidArgument)
	}
	switch v := args[i].(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("argument %d: %w: %v is not an integer", i, flowerrors.ErrInvalidArgument, v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w: %q is not an integer", i, flowerrors.ErrInvalidArgument, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %d: %w: %T is not an integer", i, flowerrors.ErrInvalidArgument, v)
	}
}
