// Command schema-generator regenerates the JSON Schema embedded by the
// config validator. It runs via go:generate from the config package.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/grovetools/launcher/config"
)

func main() {
	out := pflag.StringP("output", "o", filepath.Join("..", "schema", "launcher.embedded.schema.json"), "output path")
	pflag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Wrote schema to %s", *out)
}
