// Command sonido extracts mel-spectrogram features from audio and
// classifies instruments with an external ONNX model.
//
// Usage:
//
//	sonido [flags] <command> [args]
//
// Commands:
//
//	features  - Extract the model input tensor from a WAV file
//	classify  - Run the full pipeline against an ONNX model
//	decide    - Apply the decision rule to a raw model output
//	presets   - List the built-in model contracts
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-instrument/cmd/sonido/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
