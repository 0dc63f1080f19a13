package tool

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// decodeArgs copies validated arguments into a typed input struct using its
// json tags. Numbers arrive as float64 from JSON and are converted.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}
