package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file and unmarshals it into a struct of type T.
func LoadConfig[T any](filepath string) (*T, error) {
	// 1. Read the file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// 2. Initialize an empty instance of T
	var config T

	// 3. Unmarshal the YAML data into the struct
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	return &config, nil
}

// WriteJSON marshals data and sends it as a single text message on the
// WebSocket connection.
func WriteJSON(conn *websocket.Conn, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// Getenv returns the value of the environment variable, or fallback when it
// is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseFloatEnv parses the named environment variable as a float64. The
// boolean reports whether the variable was set at all.
func ParseFloatEnv(key string) (float64, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

// ParseDurationEnv parses the named environment variable as a duration.
// Accepts Go duration strings ("30s") and bare integers, treated as seconds.
func ParseDurationEnv(key string) (time.Duration, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}
