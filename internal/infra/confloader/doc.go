// Package confloader loads layered configuration with koanf and watches
// files for changes with fsnotify.
//
// Sources are merged in this order, later ones winning:
//
//  1. Defaults supplied by the caller through LoadMap
//  2. A YAML file
//  3. Environment variables prefixed with SNAPKEEP_
//  4. Command-line flags supplied through LoadMap
//
// Environment variables use a double underscore between sections, so
// SNAPKEEP_STORE__BASE_DIR sets store.base_dir.
package confloader
