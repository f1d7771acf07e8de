// Package confloader loads configuration with koanf and watches the
// configuration file with fsnotify.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. YAML configuration file
//  3. Environment variables (TOKVAULT_ prefix, "__" separates sections)
//  4. Explicit maps, typically built from command-line flags
package confloader
