package forge

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// DecodeOptions converts a raw block options map into a typed options struct:
// defaults from struct tags, then the raw values, then validation.
// Field mapping uses json tags, matching how options are persisted.
func DecodeOptions[T any](raw map[string]any) (T, error) {
	var options T

	if err := defaults.Set(&options); err != nil {
		return options, fmt.Errorf("failed to apply option defaults: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &options,
		TagName: "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return options, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return options, fmt.Errorf("failed to decode options: %w", err)
	}

	if err := validate.Struct(options); err != nil {
		return options, fmt.Errorf("options validation failed: %w", err)
	}

	return options, nil
}
