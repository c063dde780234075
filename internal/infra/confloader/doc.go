// Package confloader loads layered configuration with koanf.
//
// Sources, later overriding earlier:
//
//  1. Defaults (LoadMap)
//  2. YAML configuration file
//  3. Optional .env file (godotenv)
//  4. Process environment
//
// Environment keys carry the STOCKGATE_ prefix and use a double underscore
// between sections, so STOCKGATE_AUTH__ACCESS_TTL sets auth.access_ttl and
// single underscores stay inside key names.
//
// Watcher reports edits to the configuration file through fsnotify.
package confloader
